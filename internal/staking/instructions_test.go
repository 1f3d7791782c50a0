package staking

import (
	"math"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-staking/internal/token"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

func participant(i int) types.Address {
	return types.Address{0x10, byte(i)}
}

func TestStake_CapacityExhaustion(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 0)
	capacity := scenarioTiers()[0].Capacity

	for i := 0; i < int(capacity); i++ {
		u := participant(i)
		e.newUser(u, 5_000_000)
		if err := e.stake(u, 0); err != nil {
			t.Fatalf("stake %d: %v", i, err)
		}
		if got := e.getPool().Tiers[0].SlotsRemaining; got != capacity-uint64(i+1) {
			t.Fatalf("after %d stakes slots = %d, want %d", i+1, got, capacity-uint64(i+1))
		}
	}

	late := participant(99)
	e.newUser(late, 5_000_000)
	expectErr(t, e.stake(late, 0), ErrNoAvailableSlot)

	// Other tiers are independent.
	if err := e.stake(late, 1); err != nil {
		t.Fatalf("stake tier 1: %v", err)
	}
}

func TestStake_TierAlreadyUsed(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 5_000_000)
	alice := types.Address{0xa1}
	e.newUser(alice, 20_000_000)

	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	expectErr(t, e.stake(alice, 0), ErrTierAlreadyUsed) // Staking

	e.now += 5
	if _, err := e.claim(alice); err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectErr(t, e.stake(alice, 0), ErrTierAlreadyUsed) // Ready

	if err := e.unstake(alice, 0); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	expectErr(t, e.stake(alice, 0), ErrTierAlreadyUsed) // Used

	// Still TierAlreadyUsed once the tier sells out.
	for i := 0; i < 2; i++ {
		u := participant(i)
		e.newUser(u, 5_000_000)
		if err := e.stake(u, 0); err != nil {
			t.Fatalf("stake %d: %v", i, err)
		}
	}
	expectErr(t, e.stake(alice, 0), ErrTierAlreadyUsed)
}

func TestStake_Errors(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 0)
	alice := types.Address{0xa1}
	e.newUser(alice, 5_000_000)

	expectErr(t, e.stake(alice, 3), ErrInvalidTier)
	expectErr(t, e.stake(types.Address{0xee}, 0), ErrAccountNotFound)
}

func TestStake_RewardRequirementsOverflow(t *testing.T) {
	tiers := scenarioTiers()
	tiers[2] = NewTier(2, 1, 10, math.MaxUint64)
	e := setupPool(t, tiers, 0)

	a, b := participant(1), participant(2)
	e.newUser(a, 1)
	e.newUser(b, 1)
	if err := e.stake(a, 2); err != nil {
		t.Fatalf("first stake: %v", err)
	}
	expectErr(t, e.stake(b, 2), ErrArithmeticOverflow)
	if got := e.getPool().Tiers[2].SlotsRemaining; got != 1 {
		t.Errorf("failed stake consumed a slot: remaining %d", got)
	}
}

func TestStake_LockOverflow(t *testing.T) {
	tiers := scenarioTiers()
	tiers[1] = NewTier(1, 1, math.MaxUint64, 1)
	e := setupPool(t, tiers, 0)
	alice := types.Address{0xa1}
	e.newUser(alice, 1)
	expectErr(t, e.stake(alice, 1), ErrArithmeticOverflow)
}

func TestClaim_CumulativePayoutExact(t *testing.T) {
	// reward 70 over 100s leaves truncation remainders on partial claims.
	e := setupPool(t, scenarioTiers(), 70)
	alice := types.Address{0xa1}
	e.newUser(alice, 1_000)
	if err := e.stake(alice, 1); err != nil {
		t.Fatalf("stake: %v", err)
	}

	var total uint64
	for _, dt := range []uint64{3, 7, 11, 19, 29} {
		e.now += dt
		paid, err := e.claim(alice)
		if err != nil {
			t.Fatalf("claim at +%d: %v", dt, err)
		}
		total += paid
	}
	if total >= 70 {
		t.Fatalf("partial claims paid %d, want < 70", total)
	}
	if k := e.getUser(alice).Stakes[1].Kind(); k != StatusStaking {
		t.Fatalf("status = %s, want staking", k)
	}

	e.now = testStart + 100 + 50
	paid, err := e.claim(alice)
	if err != nil {
		t.Fatalf("final claim: %v", err)
	}
	total += paid
	if total != 70 {
		t.Errorf("cumulative payout = %d, want exactly 70", total)
	}
	if e.wallet(alice) != 70 {
		t.Errorf("wallet = %d, want 70", e.wallet(alice))
	}
	pool := e.getPool()
	if pool.Metrics.RewardPaid != 70 {
		t.Errorf("reward paid = %d, want 70", pool.Metrics.RewardPaid)
	}
	if k := e.getUser(alice).Stakes[1].Kind(); k != StatusReady {
		t.Errorf("status = %s, want ready", k)
	}

	// Nothing left to claim.
	_, err = e.claim(alice)
	expectErr(t, err, ErrNoStakesForUser)
}

func TestClaim_MultipleTiersOneTransfer(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 5_000_070)
	alice := types.Address{0xa1}
	e.newUser(alice, 5_001_000)
	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake 0: %v", err)
	}
	if err := e.stake(alice, 1); err != nil {
		t.Fatalf("stake 1: %v", err)
	}

	e.now += 100
	paid, err := e.claim(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid != 5_000_070 {
		t.Errorf("paid = %d, want 5000070", paid)
	}
	u := e.getUser(alice)
	if u.Stakes[0].Kind() != StatusReady || u.Stakes[1].Kind() != StatusReady {
		t.Errorf("both slots should be ready: %s, %s", u.Stakes[0], u.Stakes[1])
	}
	if !u.Stakes[2].IsNone() {
		t.Errorf("untouched slot changed: %s", u.Stakes[2])
	}
}

func TestClaim_Errors(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 5_000_000)
	alice := types.Address{0xa1}
	e.newUser(alice, 5_000_000)

	_, err := e.claim(alice)
	expectErr(t, err, ErrNoStakesForUser)

	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	_, err = e.claim(alice) // zero elapsed
	expectErr(t, err, ErrAmountMustBeGreaterThanZero)
}

func TestClaim_InsufficientRewardVault(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 1)
	alice := types.Address{0xa1}
	e.newUser(alice, 5_000_000)
	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	e.now += 5
	before := e.getUser(alice)
	if _, err := e.claim(alice); err == nil {
		t.Fatal("claim should fail when the reward vault is short")
	}
	after := e.getUser(alice)
	if before.Stakes != after.Stakes {
		t.Error("failed claim changed the stake slot")
	}
	if e.getPool().Metrics.RewardPaid != 0 {
		t.Error("failed claim changed reward paid")
	}
}

func TestUnstake_Guards(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 5_000_000)
	alice := types.Address{0xa1}
	e.newUser(alice, 5_000_000)

	expectErr(t, e.unstake(alice, 0), ErrNoStakeInTier) // None

	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	expectErr(t, e.unstake(alice, 0), ErrTimeLockNotPassed)
	e.now += 4
	expectErr(t, e.unstake(alice, 0), ErrTimeLockNotPassed)

	e.now += 1 // at lockedUntil, reward unclaimed
	expectErr(t, e.unstake(alice, 0), ErrPendingReward)
	e.now += 1000
	expectErr(t, e.unstake(alice, 0), ErrPendingReward)

	if _, err := e.claim(alice); err != nil {
		t.Fatalf("claim: %v", err)
	}
	before := e.wallet(alice)
	if err := e.unstake(alice, 0); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if got := e.wallet(alice) - before; got != 5_000_000 {
		t.Errorf("unstake returned %d, want 5000000", got)
	}
	expectErr(t, e.unstake(alice, 0), ErrNoStakeInTier) // Used
}

func TestPause_BlocksMutations(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 5_000_000)
	alice, bob := types.Address{0xa1}, types.Address{0xb0}
	e.newUser(alice, 5_000_000)
	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	e.fund(bob, 0)

	if err := e.admin(func(p *Processor, pool types.Address) error {
		return p.Pause(testAuthority, PoolParams{Pool: pool})
	}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	e.now += 5

	ops := map[string]func() error{
		"createUser": func() error {
			return e.exec(func(p *Processor) error {
				_, err := p.CreateUser(bob, PoolParams{Pool: e.pool})
				return err
			})
		},
		"stake":   func() error { return e.stake(alice, 1) },
		"claim":   func() error { _, err := e.claim(alice); return err },
		"unstake": func() error { return e.unstake(alice, 0) },
		// The pause check precedes the user record lookup.
		"stake without record":   func() error { return e.stake(bob, 0) },
		"claim without record":   func() error { _, err := e.claim(bob); return err },
		"unstake without record": func() error { return e.unstake(bob, 0) },
		"withdrawExtra": func() error {
			return e.admin(func(p *Processor, pool types.Address) error {
				_, err := p.WithdrawExtra(testAuthority, WithdrawExtraParams{Pool: pool, Destination: e.fund(testAuthority, 0)})
				return err
			})
		},
		"freeUser": func() error {
			return e.admin(func(p *Processor, pool types.Address) error {
				return p.FreeUser(testAuthority, FreeUserParams{Pool: pool, User: UserAddress(testProgram, pool, alice)})
			})
		},
		"freePool": func() error {
			return e.admin(func(p *Processor, pool types.Address) error {
				return p.FreePool(testAuthority, FreePoolParams{Pool: pool})
			})
		},
		"close": func() error {
			return e.admin(func(p *Processor, pool types.Address) error {
				return p.Close(testAuthority, PoolParams{Pool: pool})
			})
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			expectErr(t, op(), ErrPoolPaused)
		})
	}

	expectErr(t, e.admin(func(p *Processor, pool types.Address) error {
		return p.Pause(testAuthority, PoolParams{Pool: pool})
	}), ErrPoolAlreadyPaused)

	if err := e.admin(func(p *Processor, pool types.Address) error {
		return p.Unpause(testAuthority, PoolParams{Pool: pool})
	}); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	expectErr(t, e.admin(func(p *Processor, pool types.Address) error {
		return p.Unpause(testAuthority, PoolParams{Pool: pool})
	}), ErrPoolAlreadyUnpaused)

	// Claims resume after unpause.
	if _, err := e.claim(alice); err != nil {
		t.Fatalf("claim after unpause: %v", err)
	}
}

func TestClose_StopsEntrantsNotExits(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 5_000_000)
	alice, bob := types.Address{0xa1}, types.Address{0xb0}
	e.newUser(alice, 5_001_000)
	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}

	closePool := func() error {
		return e.admin(func(p *Processor, pool types.Address) error {
			return p.Close(testAuthority, PoolParams{Pool: pool})
		})
	}
	openPool := func() error {
		return e.admin(func(p *Processor, pool types.Address) error {
			return p.Open(testAuthority, PoolParams{Pool: pool})
		})
	}

	expectErr(t, openPool(), ErrPoolAlreadyOpen)
	if err := closePool(); err != nil {
		t.Fatalf("close: %v", err)
	}
	expectErr(t, closePool(), ErrPoolAlreadyClosed)

	e.fund(bob, 0)
	err := e.exec(func(p *Processor) error {
		_, err := p.CreateUser(bob, PoolParams{Pool: e.pool})
		return err
	})
	expectErr(t, err, ErrPoolClosedForNewStaking)
	expectErr(t, e.stake(alice, 1), ErrPoolClosedForNewStaking)

	e.now += 5
	if _, err := e.claim(alice); err != nil {
		t.Fatalf("claim while closed: %v", err)
	}
	if err := e.unstake(alice, 0); err != nil {
		t.Fatalf("unstake while closed: %v", err)
	}

	if err := openPool(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := e.stake(alice, 1); err != nil {
		t.Fatalf("stake after reopen: %v", err)
	}
}

func TestAdmin_Unauthorized(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 100)
	mallory := types.Address{0x66}
	dest := e.fund(mallory, 0)

	ops := map[string]func(p *Processor, pool types.Address) error{
		"pause":   func(p *Processor, pool types.Address) error { return p.Pause(mallory, PoolParams{Pool: pool}) },
		"unpause": func(p *Processor, pool types.Address) error { return p.Unpause(mallory, PoolParams{Pool: pool}) },
		"close":   func(p *Processor, pool types.Address) error { return p.Close(mallory, PoolParams{Pool: pool}) },
		"open":    func(p *Processor, pool types.Address) error { return p.Open(mallory, PoolParams{Pool: pool}) },
		"withdrawExtra": func(p *Processor, pool types.Address) error {
			_, err := p.WithdrawExtra(mallory, WithdrawExtraParams{Pool: pool, Destination: dest})
			return err
		},
		"freeUser": func(p *Processor, pool types.Address) error {
			return p.FreeUser(mallory, FreeUserParams{Pool: pool, User: types.Address{0x01}})
		},
		"freePool": func(p *Processor, pool types.Address) error {
			return p.FreePool(mallory, FreePoolParams{Pool: pool, Receiver: mallory})
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			expectErr(t, e.admin(op), ErrUnauthorized)
		})
	}
}

func closePool(t *testing.T, e *testEnv) {
	t.Helper()
	if err := e.admin(func(p *Processor, pool types.Address) error {
		return p.Close(testAuthority, PoolParams{Pool: pool})
	}); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWithdrawExtra(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 5_000_500)
	alice := types.Address{0xa1}
	e.newUser(alice, 5_000_000)
	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	dest := e.fund(testAuthority, 0)
	withdraw := func() (uint64, error) {
		var amt uint64
		err := e.admin(func(p *Processor, pool types.Address) error {
			var err error
			amt, err = p.WithdrawExtra(testAuthority, WithdrawExtraParams{Pool: pool, Destination: dest})
			return err
		})
		return amt, err
	}

	_, err := withdraw()
	expectErr(t, err, ErrPoolHasToBeClosed)

	closePool(t, e)
	amt, err := withdraw()
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amt != 500 || e.balance(dest) != 500 {
		t.Errorf("withdrew %d, destination holds %d, want 500", amt, e.balance(dest))
	}
	pool := e.getPool()
	if got := e.balance(pool.RewardVault); got != pool.Metrics.Outstanding() {
		t.Errorf("reward vault = %d, want outstanding %d", got, pool.Metrics.Outstanding())
	}
	if got := e.balance(pool.Vault); got != 5_000_000 {
		t.Errorf("principal vault touched: %d", got)
	}

	_, err = withdraw()
	expectErr(t, err, ErrOnlyExtraWithdrawal)

	// A claim lowers balance and obligation by the same amount.
	e.now += 2
	if _, err := e.claim(alice); err != nil {
		t.Fatalf("claim: %v", err)
	}
	_, err = withdraw()
	expectErr(t, err, ErrOnlyExtraWithdrawal)
}

func TestFreeUserAndPool(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 5_000_100)
	alice, bob := types.Address{0xa1}, types.Address{0xb0}
	e.newUser(alice, 5_000_000)
	e.newUser(bob, 0)
	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	receiver := types.Address{0xcc}
	aliceRec := UserAddress(testProgram, e.pool, alice)
	bobRec := UserAddress(testProgram, e.pool, bob)

	freeUser := func(user types.Address) error {
		return e.admin(func(p *Processor, pool types.Address) error {
			return p.FreeUser(testAuthority, FreeUserParams{Pool: pool, User: user, Receiver: receiver})
		})
	}
	freePool := func() error {
		return e.admin(func(p *Processor, pool types.Address) error {
			return p.FreePool(testAuthority, FreePoolParams{Pool: pool, Receiver: receiver})
		})
	}

	expectErr(t, freeUser(bobRec), ErrPoolHasToBeClosed)
	expectErr(t, freePool(), ErrPoolHasToBeClosed)
	closePool(t, e)

	expectErr(t, freeUser(aliceRec), ErrUserHasActiveStakes) // Staking
	expectErr(t, freePool(), ErrUserHasActiveStakes)

	e.now += 5
	if _, err := e.claim(alice); err != nil {
		t.Fatalf("claim: %v", err)
	}
	expectErr(t, freeUser(aliceRec), ErrUserHasActiveStakes) // Ready
	expectErr(t, freePool(), ErrUserHasActiveStakes)

	if err := e.unstake(alice, 0); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	// Surplus 100 still sits in the reward vault.
	expectErr(t, freePool(), ErrAmountMustBeZero)
	dest := e.fund(testAuthority, 0)
	if err := e.admin(func(p *Processor, pool types.Address) error {
		_, err := p.WithdrawExtra(testAuthority, WithdrawExtraParams{Pool: pool, Destination: dest})
		return err
	}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	// Settled user records still block the pool.
	expectErr(t, freePool(), ErrUserHasActiveStakes)

	if err := freeUser(aliceRec); err != nil {
		t.Fatalf("free alice: %v", err)
	}
	if err := freeUser(bobRec); err != nil {
		t.Fatalf("free bob: %v", err)
	}
	expectErr(t, freeUser(bobRec), ErrAccountNotFound)

	var events []Event
	err := e.exec(func(p *Processor) error {
		if err := p.FreePool(testAuthority, FreePoolParams{Pool: e.pool, Receiver: receiver}); err != nil {
			return err
		}
		events = p.Events()
		return nil
	})
	if err != nil {
		t.Fatalf("free pool: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("free pool emitted %d events, want 3", len(events))
	}
	for _, ev := range events {
		if r, ok := ev.(ReclaimEvent); !ok || r.Receiver != receiver {
			t.Errorf("unexpected event %#v", ev)
		}
	}

	store, ledger := e.stores(e.db)
	if ok, _ := store.HasPool(e.pool); ok {
		t.Error("pool record still present")
	}
	if ok, _ := ledger.Store().Has(VaultAddress(testProgram, e.pool)); ok {
		t.Error("vault token account still present")
	}
}

func TestFreeUser_OtherPool(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 0)
	alice := types.Address{0xa1}
	e.newUser(alice, 0)

	var other types.Address
	e.mustExec(func(p *Processor) error {
		pool, err := p.Initialize(testAuthority, InitializeParams{Seed: "second", Mint: testMint, Tiers: scenarioTiers()})
		if err != nil {
			return err
		}
		other = pool.Address
		return p.Close(testAuthority, PoolParams{Pool: pool.Address})
	})

	err := e.exec(func(p *Processor) error {
		return p.FreeUser(testAuthority, FreeUserParams{Pool: other, User: UserAddress(testProgram, e.pool, alice)})
	})
	expectErr(t, err, ErrAccountMismatch)
}

func TestFreePool_ReinitializeSameSeed(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 5_000_000)
	alice := types.Address{0xa1}
	e.newUser(alice, 5_000_000)
	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake: %v", err)
	}
	e.now += 5
	if _, err := e.claim(alice); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := e.unstake(alice, 0); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	closePool(t, e)

	aliceRec := UserAddress(testProgram, e.pool, alice)
	e.mustExec(func(p *Processor) error {
		if err := p.FreeUser(testAuthority, FreeUserParams{Pool: e.pool, User: aliceRec}); err != nil {
			return err
		}
		return p.FreePool(testAuthority, FreePoolParams{Pool: e.pool})
	})

	for key := range e.snapshot() {
		if strings.HasPrefix(key, "s/u") {
			t.Errorf("user key %q left after free", key)
		}
	}

	freed := e.pool
	e.mustExec(func(p *Processor) error {
		pool, err := p.Initialize(testAuthority, InitializeParams{Seed: "main", Mint: testMint, Tiers: scenarioTiers()})
		if err != nil {
			return err
		}
		e.pool = pool.Address
		return nil
	})
	if e.pool != freed {
		t.Fatalf("reinitialized pool at %s, want %s", e.pool, freed)
	}
	e.fund(testFunder, 5_000_000)
	e.mustExec(func(p *Processor) error {
		return p.custody.Transfer(token.AssociatedAddress(testFunder, testMint),
			RewardVaultAddress(testProgram, e.pool), testFunder, 5_000_000)
	})

	e.mustExec(func(p *Processor) error {
		_, err := p.CreateUser(alice, PoolParams{Pool: e.pool})
		return err
	})
	if got := e.getUser(alice).Stakes; got != [NumTiers]StakeStatus{} {
		t.Fatalf("fresh user stakes = %v", got)
	}
	if err := e.stake(alice, 0); err != nil {
		t.Fatalf("stake in reinitialized pool: %v", err)
	}
}


func TestFreePool_VaultDepositBlocks(t *testing.T) {
	e := setupPool(t, scenarioTiers(), 0)
	mallory := types.Address{0x66}
	e.fund(mallory, 1)
	e.mustExec(func(p *Processor) error {
		return p.custody.Transfer(token.AssociatedAddress(mallory, testMint), VaultAddress(testProgram, e.pool), mallory, 1)
	})
	closePool(t, e)

	expectErr(t, e.admin(func(p *Processor, pool types.Address) error {
		_, err := p.WithdrawExtra(testAuthority, WithdrawExtraParams{Pool: pool, Destination: e.fund(testAuthority, 0)})
		return err
	}), ErrOnlyExtraWithdrawal)
	expectErr(t, e.admin(func(p *Processor, pool types.Address) error {
		return p.FreePool(testAuthority, FreePoolParams{Pool: pool})
	}), ErrAmountMustBeZero)
	if got := e.balance(VaultAddress(testProgram, e.pool)); got != 1 {
		t.Errorf("vault balance = %d, want 1", got)
	}
}
