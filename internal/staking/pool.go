package staking

import (
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// Metrics are the pool-wide reward totals.
type Metrics struct {
	RewardRequirements uint64 `json:"reward_requirements"`
	RewardPaid         uint64 `json:"reward_paid"`
}

// Outstanding returns reward committed to stakers but not yet paid.
func (m Metrics) Outstanding() uint64 {
	if m.RewardPaid > m.RewardRequirements {
		return 0
	}
	return m.RewardRequirements - m.RewardPaid
}

func (m *Metrics) stake(reward uint64) error {
	total, err := checkedAdd(m.RewardRequirements, reward)
	if err != nil {
		return wrap(ErrArithmeticOverflow, "reward requirements")
	}
	m.RewardRequirements = total
	return nil
}

func (m *Metrics) claim(amount uint64) error {
	total, err := checkedAdd(m.RewardPaid, amount)
	if err != nil {
		return wrap(ErrArithmeticOverflow, "reward paid")
	}
	if total > m.RewardRequirements {
		return wrap(ErrArithmeticOverflow, "reward paid %d exceeds requirements %d", total, m.RewardRequirements)
	}
	m.RewardPaid = total
	return nil
}

// Pool is the administrative and custodial record of one staking pool.
type Pool struct {
	Address       types.Address `json:"address"`
	Authority     types.Address `json:"authority"`
	FundingSource types.Address `json:"funding_source"`
	Mint          types.Address `json:"mint"`
	Seed          string        `json:"seed"`

	Vault       types.Address `json:"vault"`
	RewardVault types.Address `json:"reward_vault"`

	Paused bool `json:"paused"`
	Closed bool `json:"closed"`

	Tiers   [NumTiers]Tier `json:"tiers"`
	Metrics Metrics        `json:"metrics"`
}

// Tier returns a pointer to tier i.
func (p *Pool) Tier(i TierIndex) (*Tier, error) {
	if !i.Valid() {
		return nil, wrap(ErrInvalidTier, "%d", i)
	}
	return &p.Tiers[i], nil
}

// requireAuthority fails with Unauthorized unless signer administers the pool.
func (p *Pool) requireAuthority(signer types.Address) error {
	if p.Authority != signer {
		return wrap(ErrUnauthorized, "%s", signer)
	}
	return nil
}

func (p *Pool) requireUnpaused() error {
	if p.Paused {
		return ErrPoolPaused
	}
	return nil
}

func (p *Pool) requireOpen() error {
	if p.Closed {
		return ErrPoolClosedForNewStaking
	}
	return nil
}

// requireTeardown checks the closed && !paused precondition shared by the
// fund reclamation instructions.
func (p *Pool) requireTeardown() error {
	if err := p.requireUnpaused(); err != nil {
		return err
	}
	if !p.Closed {
		return ErrPoolHasToBeClosed
	}
	return nil
}

// hasActiveStakes reports whether any tier has stakes not yet unstaked.
func (p *Pool) hasActiveStakes() bool {
	for _, t := range p.Tiers {
		if t.Active() != 0 {
			return true
		}
	}
	return false
}
