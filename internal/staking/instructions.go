package staking

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// InitializeParams creates a pool.
type InitializeParams struct {
	Seed          string         `json:"seed"`
	Mint          types.Address  `json:"mint"`
	FundingSource types.Address  `json:"funding_source"`
	Tiers         [NumTiers]Tier `json:"tiers"`
}

// PoolParams names the pool of an authority-only toggle or createUser.
type PoolParams struct {
	Pool types.Address `json:"pool"`
}

// StakeParams opens a stake in one tier.
type StakeParams struct {
	Pool   types.Address  `json:"pool"`
	Tier   TierIndex      `json:"tier"`
	Source *types.Address `json:"source,omitempty"`
}

// ClaimParams claims accrued reward across all tiers.
type ClaimParams struct {
	Pool        types.Address  `json:"pool"`
	Destination *types.Address `json:"destination,omitempty"`
}

// UnstakeParams returns the principal of one tier.
type UnstakeParams struct {
	Pool        types.Address  `json:"pool"`
	Tier        TierIndex      `json:"tier"`
	Destination *types.Address `json:"destination,omitempty"`
}

// FreeUserParams deletes a settled user record.
type FreeUserParams struct {
	Pool     types.Address `json:"pool"`
	User     types.Address `json:"user"`
	Receiver types.Address `json:"receiver"`
}

// FreePoolParams tears a drained pool down.
type FreePoolParams struct {
	Pool     types.Address `json:"pool"`
	Receiver types.Address `json:"receiver"`
}

// WithdrawExtraParams withdraws surplus reward.
type WithdrawExtraParams struct {
	Pool        types.Address `json:"pool"`
	Destination types.Address `json:"destination"`
}

// Initialize creates a pool owned by authority with its two custody vaults.
func (p *Processor) Initialize(authority types.Address, params InitializeParams) (*Pool, error) {
	if err := validSeed(params.Seed); err != nil {
		return nil, err
	}
	for i, t := range params.Tiers {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tier %d: %w", i, err)
		}
	}

	addrs := DeriveAddresses(p.program, authority, params.Seed, types.Address{})
	exists, err := p.store.HasPool(addrs.Pool)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if exists {
		return nil, wrap(ErrAccountAlreadyExists, "pool %s", addrs.Pool)
	}

	if _, err := p.custody.Open(addrs.Vault, params.Mint, addrs.Pool); err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if _, err := p.custody.Open(addrs.RewardVault, params.Mint, addrs.Pool); err != nil {
		return nil, fmt.Errorf("open reward vault: %w", err)
	}

	pool := &Pool{
		Address:       addrs.Pool,
		Authority:     authority,
		FundingSource: params.FundingSource,
		Mint:          params.Mint,
		Seed:          params.Seed,
		Vault:         addrs.Vault,
		RewardVault:   addrs.RewardVault,
		Tiers:         params.Tiers,
	}
	if err := p.store.PutPool(pool); err != nil {
		return nil, err
	}
	p.emit(PoolEvent{Name: EventPoolInitialized, Pool: pool.Address})
	return pool, nil
}

// Pause stops every state-mutating instruction except the pause toggles.
func (p *Processor) Pause(authority types.Address, params PoolParams) error {
	return p.toggle(authority, params.Pool, func(pool *Pool) error {
		if pool.Paused {
			return ErrPoolAlreadyPaused
		}
		pool.Paused = true
		p.emit(PoolEvent{Name: EventPoolPaused, Pool: pool.Address})
		return nil
	})
}

// Unpause lifts a pause.
func (p *Processor) Unpause(authority types.Address, params PoolParams) error {
	return p.toggle(authority, params.Pool, func(pool *Pool) error {
		if !pool.Paused {
			return ErrPoolAlreadyUnpaused
		}
		pool.Paused = false
		p.emit(PoolEvent{Name: EventPoolUnpaused, Pool: pool.Address})
		return nil
	})
}

// Close stops new users and new stakes. Existing stakes may still be claimed
// and unstaked.
func (p *Processor) Close(authority types.Address, params PoolParams) error {
	return p.toggle(authority, params.Pool, func(pool *Pool) error {
		if err := pool.requireUnpaused(); err != nil {
			return err
		}
		if pool.Closed {
			return ErrPoolAlreadyClosed
		}
		pool.Closed = true
		p.emit(PoolEvent{Name: EventPoolClosed, Pool: pool.Address})
		return nil
	})
}

// Open reopens a closed pool.
func (p *Processor) Open(authority types.Address, params PoolParams) error {
	return p.toggle(authority, params.Pool, func(pool *Pool) error {
		if err := pool.requireUnpaused(); err != nil {
			return err
		}
		if !pool.Closed {
			return ErrPoolAlreadyOpen
		}
		pool.Closed = false
		p.emit(PoolEvent{Name: EventPoolOpened, Pool: pool.Address})
		return nil
	})
}

func (p *Processor) toggle(authority, addr types.Address, apply func(*Pool) error) error {
	pool, err := p.loadPool(addr)
	if err != nil {
		return err
	}
	if err := pool.requireAuthority(authority); err != nil {
		return err
	}
	if err := apply(pool); err != nil {
		return err
	}
	return p.store.PutPool(pool)
}

// CreateUser creates the signer's user record in a pool.
func (p *Processor) CreateUser(signer types.Address, params PoolParams) (*User, error) {
	pool, err := p.loadPool(params.Pool)
	if err != nil {
		return nil, err
	}
	if err := pool.requireUnpaused(); err != nil {
		return nil, err
	}
	if err := pool.requireOpen(); err != nil {
		return nil, err
	}

	addr := UserAddress(p.program, pool.Address, signer)
	exists, err := p.store.HasUser(pool.Address, addr)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if exists {
		return nil, wrap(ErrAccountAlreadyExists, "user %s", addr)
	}

	user := &User{Address: addr, Pool: pool.Address, Authority: signer}
	if err := p.store.PutUser(user); err != nil {
		return nil, err
	}
	p.emit(UserCreatedEvent{Pool: pool.Address, User: addr, Authority: signer})
	return user, nil
}

// Stake opens a stake of tier.StakeAmount in one tier.
func (p *Processor) Stake(signer types.Address, params StakeParams) error {
	pool, err := p.loadPool(params.Pool)
	if err != nil {
		return err
	}
	if err := pool.requireUnpaused(); err != nil {
		return err
	}
	if err := pool.requireOpen(); err != nil {
		return err
	}
	tier, err := pool.Tier(params.Tier)
	if err != nil {
		return err
	}
	user, err := p.loadUser(pool, signer)
	if err != nil {
		return err
	}
	if !user.Stakes[params.Tier].IsNone() {
		return wrap(ErrTierAlreadyUsed, "tier %d is %s", params.Tier, user.Stakes[params.Tier].Kind())
	}
	if tier.SlotsRemaining == 0 {
		return wrap(ErrNoAvailableSlot, "tier %d", params.Tier)
	}

	lockedUntil, err := tier.lockedUntil(p.now)
	if err != nil {
		return wrap(ErrArithmeticOverflow, "locked until")
	}
	if err := pool.Metrics.stake(tier.RewardAmount); err != nil {
		return err
	}
	if err := tier.useSlot(); err != nil {
		return err
	}

	source := resolve(params.Source, signer, pool)
	if err := p.transfer("stake", source, pool.Vault, signer, tier.StakeAmount); err != nil {
		return err
	}

	user.Stakes[params.Tier] = NewStaking(Staking{
		AmountStaked: tier.StakeAmount,
		LastClaimed:  p.now,
		LockedUntil:  lockedUntil,
	})
	if err := p.store.PutPool(pool); err != nil {
		return err
	}
	if err := p.store.PutUser(user); err != nil {
		return err
	}
	p.emit(StakeEvent{
		Pool:        pool.Address,
		User:        user.Address,
		Tier:        params.Tier,
		LockedUntil: lockedUntil,
		Amount:      tier.StakeAmount,
	})
	return nil
}

// Claim pays the reward accrued by every staking slot of the signer in one
// transfer and returns the amount paid.
func (p *Processor) Claim(signer types.Address, params ClaimParams) (uint64, error) {
	pool, err := p.loadPool(params.Pool)
	if err != nil {
		return 0, err
	}
	if err := pool.requireUnpaused(); err != nil {
		return 0, err
	}
	user, err := p.loadUser(pool, signer)
	if err != nil {
		return 0, err
	}
	if !user.HasStaking() {
		return 0, ErrNoStakesForUser
	}

	var total uint64
	next := user.Stakes
	for i := range user.Stakes {
		amount, status, err := user.Stakes[i].Accrue(pool.Tiers[i], p.now)
		if err != nil {
			return 0, fmt.Errorf("tier %d: %w", i, err)
		}
		if total, err = checkedAdd(total, amount); err != nil {
			return 0, wrap(ErrArithmeticOverflow, "claim total")
		}
		next[i] = status
	}
	if total == 0 {
		return 0, ErrAmountMustBeGreaterThanZero
	}
	if err := pool.Metrics.claim(total); err != nil {
		return 0, err
	}

	destination := resolve(params.Destination, signer, pool)
	if err := p.transfer("claim", pool.RewardVault, destination, pool.Address, total); err != nil {
		return 0, err
	}

	user.Stakes = next
	if err := p.store.PutPool(pool); err != nil {
		return 0, err
	}
	if err := p.store.PutUser(user); err != nil {
		return 0, err
	}
	p.emit(ClaimEvent{Pool: pool.Address, User: user.Address, Amount: total})
	return total, nil
}

// Unstake returns the principal of a Ready slot and marks it Used.
func (p *Processor) Unstake(signer types.Address, params UnstakeParams) error {
	pool, err := p.loadPool(params.Pool)
	if err != nil {
		return err
	}
	if err := pool.requireUnpaused(); err != nil {
		return err
	}
	tier, err := pool.Tier(params.Tier)
	if err != nil {
		return err
	}
	user, err := p.loadUser(pool, signer)
	if err != nil {
		return err
	}

	status := user.Stakes[params.Tier]
	switch status.Kind() {
	case StatusNone, StatusUsed:
		return wrap(ErrNoStakeInTier, "tier %d is %s", params.Tier, status.Kind())
	case StatusStaking:
		s, _ := status.Staking()
		if p.now < s.LockedUntil {
			return wrap(ErrTimeLockNotPassed, "locked until %d, now %d", s.LockedUntil, p.now)
		}
		return ErrPendingReward
	}

	if err := tier.complete(); err != nil {
		return err
	}
	destination := resolve(params.Destination, signer, pool)
	if err := p.transfer("unstake", pool.Vault, destination, pool.Address, tier.StakeAmount); err != nil {
		return err
	}

	user.Stakes[params.Tier] = Used()
	if err := p.store.PutPool(pool); err != nil {
		return err
	}
	if err := p.store.PutUser(user); err != nil {
		return err
	}
	p.emit(UnstakeEvent{Pool: pool.Address, User: user.Address, Tier: params.Tier, Amount: tier.StakeAmount})
	return nil
}

// WithdrawExtra moves reward-vault funds above the outstanding obligation to
// destination and returns the amount moved. The principal vault is never
// touched.
func (p *Processor) WithdrawExtra(authority types.Address, params WithdrawExtraParams) (uint64, error) {
	pool, err := p.loadPool(params.Pool)
	if err != nil {
		return 0, err
	}
	if err := pool.requireAuthority(authority); err != nil {
		return 0, err
	}
	if err := pool.requireTeardown(); err != nil {
		return 0, err
	}

	balance, err := p.custody.Balance(pool.RewardVault)
	if err != nil {
		return 0, fmt.Errorf("reward vault balance: %w", err)
	}
	outstanding := pool.Metrics.Outstanding()
	if balance <= outstanding {
		return 0, wrap(ErrOnlyExtraWithdrawal, "balance %d, outstanding %d", balance, outstanding)
	}
	extra := balance - outstanding

	if err := p.transfer("withdraw", pool.RewardVault, params.Destination, pool.Address, extra); err != nil {
		return 0, err
	}
	p.emit(WithdrawEvent{Pool: pool.Address, Destination: params.Destination, Amount: extra})
	return extra, nil
}

// FreeUser deletes a user record whose slots are all None or Used. It moves
// no tokens.
func (p *Processor) FreeUser(authority types.Address, params FreeUserParams) error {
	pool, err := p.loadPool(params.Pool)
	if err != nil {
		return err
	}
	if err := pool.requireAuthority(authority); err != nil {
		return err
	}
	if err := pool.requireTeardown(); err != nil {
		return err
	}

	user, err := p.store.GetUserByAddress(params.User)
	if err != nil {
		return err
	}
	if user.Pool != pool.Address {
		return wrap(ErrAccountMismatch, "user %s belongs to pool %s", user.Address, user.Pool)
	}
	if !user.Settled() {
		return wrap(ErrUserHasActiveStakes, "user %s", user.Address)
	}

	if err := p.store.DeleteUser(pool.Address, user.Address); err != nil {
		return err
	}
	p.emit(ReclaimEvent{Account: user.Address, Receiver: params.Receiver})
	return nil
}

// FreePool closes both vaults and deletes the pool record once every user
// record has been freed and both vaults are empty.
func (p *Processor) FreePool(authority types.Address, params FreePoolParams) error {
	pool, err := p.loadPool(params.Pool)
	if err != nil {
		return err
	}
	if err := pool.requireAuthority(authority); err != nil {
		return err
	}
	if err := pool.requireTeardown(); err != nil {
		return err
	}
	if pool.hasActiveStakes() {
		return wrap(ErrUserHasActiveStakes, "pool %s", pool.Address)
	}

	for _, vault := range []types.Address{pool.Vault, pool.RewardVault} {
		balance, err := p.custody.Balance(vault)
		if err != nil {
			return fmt.Errorf("vault balance: %w", err)
		}
		if balance != 0 {
			return wrap(ErrAmountMustBeZero, "vault %s holds %d", vault, balance)
		}
	}
	// User addresses derive from the pool address, which a later
	// initialize with the same seed reuses.
	users, err := p.store.HasUsers(pool.Address)
	if err != nil {
		return fmt.Errorf("free pool: %w", err)
	}
	if users {
		return wrap(ErrUserHasActiveStakes, "pool %s still has user records", pool.Address)
	}

	for _, vault := range []types.Address{pool.Vault, pool.RewardVault} {
		if err := p.custody.Close(vault, pool.Address); err != nil {
			return fmt.Errorf("close vault: %w", err)
		}
		p.emit(ReclaimEvent{Account: vault, Receiver: params.Receiver})
	}
	if err := p.store.DeletePool(pool.Address); err != nil {
		return err
	}
	p.emit(ReclaimEvent{Account: pool.Address, Receiver: params.Receiver})
	return nil
}
