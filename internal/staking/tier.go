package staking

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// NumTiers is the number of tiers every pool offers.
const NumTiers = 3

// TierIndex selects one of a pool's tiers.
type TierIndex uint8

// Valid reports whether i addresses an existing tier.
func (i TierIndex) Valid() bool {
	return i < NumTiers
}

// ParseTierIndex parses "0", "1" or "2".
func ParseTierIndex(s string) (TierIndex, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || !TierIndex(n).Valid() {
		return 0, wrap(ErrInvalidTier, "%q", s)
	}
	return TierIndex(n), nil
}

// UnmarshalJSON rejects out-of-range indexes at decode time.
func (i *TierIndex) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("tier index: %w", err)
	}
	if n >= NumTiers {
		return wrap(ErrInvalidTier, "%d", n)
	}
	*i = TierIndex(n)
	return nil
}

// Tier is a fixed economic offer within a pool.
//
// Capacity, StakeAmount, LockDuration and RewardAmount never change after
// initialize. SlotsRemaining only decreases and Completed only increases.
type Tier struct {
	Capacity       uint64 `json:"capacity"`
	SlotsRemaining uint64 `json:"slots_remaining"`
	Completed      uint64 `json:"completed"`
	StakeAmount    uint64 `json:"stake_amount"`
	LockDuration   uint64 `json:"lock_duration"`
	RewardAmount   uint64 `json:"reward_amount"`
}

// NewTier returns a fresh tier with every slot available.
func NewTier(capacity, stakeAmount, lockDuration, rewardAmount uint64) Tier {
	return Tier{
		Capacity:       capacity,
		SlotsRemaining: capacity,
		StakeAmount:    stakeAmount,
		LockDuration:   lockDuration,
		RewardAmount:   rewardAmount,
	}
}

// Validate checks that a tier is fit to initialize a pool with.
func (t Tier) Validate() error {
	switch {
	case t.Capacity == 0:
		return wrap(ErrInvalidRewardTier, "capacity must be positive")
	case t.SlotsRemaining != t.Capacity:
		return wrap(ErrInvalidRewardTier, "slots remaining %d != capacity %d", t.SlotsRemaining, t.Capacity)
	case t.Completed != 0:
		return wrap(ErrInvalidRewardTier, "completed must be zero")
	case t.StakeAmount == 0:
		return wrap(ErrInvalidRewardTier, "stake amount must be positive")
	case t.LockDuration == 0:
		return wrap(ErrInvalidRewardTier, "lock duration must be positive")
	case t.RewardAmount == 0:
		return wrap(ErrInvalidRewardTier, "reward amount must be positive")
	}
	return nil
}

// Sold returns the number of stakes ever opened in this tier.
func (t Tier) Sold() uint64 {
	return t.Capacity - t.SlotsRemaining
}

// Active returns the number of stakes opened but not yet unstaked.
func (t Tier) Active() uint64 {
	return t.Sold() - t.Completed
}

func (t *Tier) useSlot() error {
	if t.SlotsRemaining == 0 {
		return ErrNoAvailableSlot
	}
	t.SlotsRemaining--
	return nil
}

func (t *Tier) complete() error {
	if t.Completed >= t.Sold() {
		return wrap(ErrArithmeticOverflow, "completed would exceed sold stakes")
	}
	t.Completed++
	return nil
}

// lockedUntil returns now + LockDuration.
func (t Tier) lockedUntil(now uint64) (uint64, error) {
	return checkedAdd(now, t.LockDuration)
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}
