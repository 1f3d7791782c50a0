package staking

import (
	"github.com/holiman/uint256"
)

// Accrue computes the reward a slot earns at time now and the slot state
// after paying it.
//
// At or after LockedUntil the whole unpaid remainder is paid and the slot
// becomes Ready. Before that the payout is
// min(remaining, floor(reward * (now - lastClaimed) / duration)); a partial
// payout that reaches the remainder also promotes the slot to Ready. A clock
// reading earlier than LastClaimed counts as zero elapsed time.
//
// Slots that are not staking accrue nothing and are returned unchanged.
func (s StakeStatus) Accrue(tier Tier, now uint64) (uint64, StakeStatus, error) {
	p, ok := s.Staking()
	if !ok {
		return 0, s, nil
	}
	if p.RewardPaid > tier.RewardAmount {
		return 0, s, wrap(ErrArithmeticOverflow, "reward paid %d exceeds tier reward %d", p.RewardPaid, tier.RewardAmount)
	}
	remaining := tier.RewardAmount - p.RewardPaid

	if now >= p.LockedUntil {
		return remaining, Ready(), nil
	}

	var elapsed uint64
	if now > p.LastClaimed {
		elapsed = now - p.LastClaimed
	}
	amount := linearReward(tier.RewardAmount, elapsed, tier.LockDuration)
	if amount >= remaining {
		return remaining, Ready(), nil
	}

	if now > p.LastClaimed {
		p.LastClaimed = now
	}
	p.RewardPaid += amount
	return amount, NewStaking(p), nil
}

// linearReward returns floor(reward * elapsed / duration) using a 256-bit
// intermediate so the product cannot overflow. Results above MaxUint64 are
// saturated; callers cap them by the remaining reward anyway.
func linearReward(reward, elapsed, duration uint64) uint64 {
	if duration == 0 || elapsed == 0 {
		return 0
	}
	product := new(uint256.Int).Mul(uint256.NewInt(reward), uint256.NewInt(elapsed))
	quotient := product.Div(product, uint256.NewInt(duration))
	if !quotient.IsUint64() {
		return ^uint64(0)
	}
	return quotient.Uint64()
}
