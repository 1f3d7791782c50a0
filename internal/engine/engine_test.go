package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/internal/storage"
	"github.com/Klingon-tech/klingnet-staking/internal/token"
	"github.com/Klingon-tech/klingnet-staking/pkg/crypto"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

var (
	testProgram = crypto.ProgramIDFromName("staking-engine-test")
	testMint    = types.Address{0x4d, 0x49, 0x4e, 0x54}
)

const testStart = uint64(1_700_000_000)

type testEnv struct {
	t      *testing.T
	db     *storage.MemoryDB
	clock  *ManualClock
	engine *Engine
	admin  *crypto.PrivateKey
	alice  *crypto.PrivateKey
	nonce  uint64
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key
}

// setupEngine creates an engine with admin and alice funded at genesis.
func setupEngine(t *testing.T, maxSkew uint64) *testEnv {
	t.Helper()
	env := &testEnv{
		t:     t,
		db:    storage.NewMemory(),
		clock: NewManualClock(testStart),
		admin: mustKey(t),
		alice: mustKey(t),
	}
	eng, err := New(env.db, Config{Program: testProgram, Clock: env.clock, MaxSkew: maxSkew})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.engine = eng

	applied, err := eng.ApplyGenesis(Genesis{
		Mint:      testMint,
		Timestamp: testStart,
		Alloc: map[types.Address]uint64{
			env.admin.Address(): 10_000_000,
			env.alice.Address(): 10_000_000,
		},
	})
	if err != nil || !applied {
		t.Fatalf("ApplyGenesis = %v, %v", applied, err)
	}
	return env
}

// build returns a signed instruction at the current clock time.
func (env *testEnv) build(key *crypto.PrivateKey, kind Kind, params interface{}) *Instruction {
	env.t.Helper()
	env.nonce++
	ins, err := NewInstruction(testProgram, kind, params, env.clock.Now(), env.nonce)
	if err != nil {
		env.t.Fatalf("NewInstruction: %v", err)
	}
	if err := ins.Sign(key); err != nil {
		env.t.Fatalf("Sign: %v", err)
	}
	return ins
}

func (env *testEnv) submit(key *crypto.PrivateKey, kind Kind, params interface{}) (*Receipt, error) {
	env.t.Helper()
	return env.engine.Submit(env.build(key, kind, params))
}

func (env *testEnv) mustSubmit(key *crypto.PrivateKey, kind Kind, params interface{}) *Receipt {
	env.t.Helper()
	r, err := env.submit(key, kind, params)
	if err != nil {
		env.t.Fatalf("%s: %v", kind, err)
	}
	return r
}

func (env *testEnv) balance(key *crypto.PrivateKey) uint64 {
	env.t.Helper()
	amt, err := env.engine.Balance(key.Address(), testMint)
	if err != nil {
		env.t.Fatalf("Balance: %v", err)
	}
	return amt
}

// snapshot renders every key/value pair of the database.
func (env *testEnv) snapshot() string {
	env.t.Helper()
	var buf bytes.Buffer
	err := env.db.ForEach(nil, func(k, v []byte) error {
		fmt.Fprintf(&buf, "%x=%x\n", k, v)
		return nil
	})
	if err != nil {
		env.t.Fatalf("snapshot: %v", err)
	}
	return buf.String()
}

func scenarioTiers() [staking.NumTiers]staking.Tier {
	return [staking.NumTiers]staking.Tier{
		staking.NewTier(3, 5_000_000, 5, 5_000_000),
		staking.NewTier(2, 1_000, 100, 70),
		staking.NewTier(1, 10_000, 1_000, 9_999),
	}
}

// initPool creates the "main" pool and funds its reward vault.
func (env *testEnv) initPool(rewardFunding uint64) staking.Addresses {
	env.t.Helper()
	env.mustSubmit(env.admin, KindInitialize, staking.InitializeParams{
		Seed:          "main",
		Mint:          testMint,
		FundingSource: env.admin.Address(),
		Tiers:         scenarioTiers(),
	})
	addrs := env.engine.DeriveAddresses(env.admin.Address(), "main", types.Address{})
	if rewardFunding > 0 {
		env.mustSubmit(env.admin, KindTokenTransfer, TokenTransferParams{
			Source:      token.AssociatedAddress(env.admin.Address(), testMint),
			Destination: addrs.RewardVault,
			Amount:      rewardFunding,
		})
	}
	return addrs
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, Config{Program: testProgram}); err == nil {
		t.Error("expected error for nil db")
	}
	if _, err := New(storage.NewMemory(), Config{}); err == nil {
		t.Error("expected error for zero program")
	}
}

func TestSubmit_Scenario(t *testing.T) {
	env := setupEngine(t, 0)
	addrs := env.initPool(5_000_000)

	env.mustSubmit(env.alice, KindCreateUser, staking.PoolParams{Pool: addrs.Pool})
	r := env.mustSubmit(env.alice, KindStake, staking.StakeParams{Pool: addrs.Pool, Tier: 0})
	if len(r.Events) != 1 || r.Events[0].Name != "stake" {
		t.Fatalf("stake events = %+v", r.Events)
	}
	if got := env.balance(env.alice); got != 5_000_000 {
		t.Fatalf("alice after stake = %d, want 5000000", got)
	}

	env.clock.Advance(5)
	r = env.mustSubmit(env.alice, KindClaim, staking.ClaimParams{Pool: addrs.Pool})
	var claim staking.ClaimEvent
	if err := json.Unmarshal(r.Events[0].Data, &claim); err != nil {
		t.Fatalf("decode claim event: %v", err)
	}
	if claim.Amount != 5_000_000 {
		t.Errorf("claimed %d, want 5000000", claim.Amount)
	}

	env.mustSubmit(env.alice, KindUnstake, staking.UnstakeParams{Pool: addrs.Pool, Tier: 0})
	if got := env.balance(env.alice); got != 15_000_000 {
		t.Errorf("alice final balance = %d, want 15000000", got)
	}

	user, err := env.engine.User(addrs.Pool, env.alice.Address())
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if user.Stakes[0].Kind() != staking.StatusUsed {
		t.Errorf("tier 0 = %s, want used", user.Stakes[0])
	}

	stored, err := env.engine.Receipt(r.ID)
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if stored.Kind != KindUnstake || stored.Time != testStart+5 {
		t.Errorf("receipt = %+v", stored)
	}
}

func TestSubmit_FailureLeavesStoreIdentical(t *testing.T) {
	env := setupEngine(t, 0)
	addrs := env.initPool(70)
	env.mustSubmit(env.alice, KindCreateUser, staking.PoolParams{Pool: addrs.Pool})

	tests := []struct {
		name   string
		key    *crypto.PrivateKey
		kind   Kind
		params interface{}
	}{
		{"no slot to claim", env.alice, KindClaim, staking.ClaimParams{Pool: addrs.Pool}},
		{"not authority", env.alice, KindPause, staking.PoolParams{Pool: addrs.Pool}},
		{"unknown pool", env.alice, KindStake, staking.StakeParams{Pool: types.Address{0x01}}},
		{"overdraw", env.alice, KindTokenTransfer, TokenTransferParams{
			Source:      token.AssociatedAddress(env.alice.Address(), testMint),
			Destination: addrs.RewardVault,
			Amount:      20_000_000,
		}},
		{"reinitialize", env.admin, KindInitialize, staking.InitializeParams{
			Seed: "main", Mint: testMint, Tiers: scenarioTiers(),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.snapshot()
			if _, err := env.submit(tt.key, tt.kind, tt.params); err == nil {
				t.Fatal("expected failure")
			}
			if after := env.snapshot(); after != before {
				t.Error("store changed after failed instruction")
			}
		})
	}
}

func TestSubmit_Duplicate(t *testing.T) {
	env := setupEngine(t, 0)
	ins := env.build(env.alice, KindTokenOpen, TokenOpenParams{Mint: types.Address{0x77}})

	if _, err := env.engine.Submit(ins); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	before := env.snapshot()
	if _, err := env.engine.Submit(ins); !errors.Is(err, ErrDuplicateInstruction) {
		t.Errorf("resubmit = %v, want ErrDuplicateInstruction", err)
	}
	if env.snapshot() != before {
		t.Error("duplicate changed the store")
	}
}

func TestSubmit_BadSignature(t *testing.T) {
	env := setupEngine(t, 0)

	tampered := env.build(env.alice, KindTokenOpen, TokenOpenParams{Mint: types.Address{0x01}})
	tampered.Params = json.RawMessage(`{"mint":"0x0200000000000000000000000000000000000000"}`)

	unsigned, _ := NewInstruction(testProgram, KindTokenOpen, TokenOpenParams{}, testStart, 1)
	unsigned.Signer = env.alice.PublicKey()

	impostor := env.build(env.alice, KindTokenOpen, TokenOpenParams{Mint: types.Address{0x03}})
	impostor.Signer = env.admin.PublicKey()

	short := env.build(env.alice, KindTokenOpen, TokenOpenParams{})
	short.Signer = short.Signer[:20]

	for name, ins := range map[string]*Instruction{
		"tampered params": tampered,
		"unsigned":        unsigned,
		"other signer":    impostor,
		"short key":       short,
	} {
		if _, err := env.engine.Submit(ins); !errors.Is(err, ErrBadSignature) {
			t.Errorf("%s: err = %v, want ErrBadSignature", name, err)
		}
	}
}

func TestSubmit_EnvelopeErrors(t *testing.T) {
	env := setupEngine(t, 30)

	wrongProgram, _ := NewInstruction(crypto.ProgramIDFromName("other"), KindPause, staking.PoolParams{}, testStart, 1)
	wrongProgram.Sign(env.alice)

	unknown, _ := NewInstruction(testProgram, Kind("mint"), struct{}{}, testStart, 2)
	unknown.Sign(env.alice)

	stale, _ := NewInstruction(testProgram, KindTokenOpen, TokenOpenParams{Mint: testMint}, testStart-31, 3)
	stale.Sign(env.alice)

	future, _ := NewInstruction(testProgram, KindTokenOpen, TokenOpenParams{Mint: testMint}, testStart+31, 4)
	future.Sign(env.alice)

	extraField := env.build(env.alice, KindTokenOpen, map[string]string{"mint": testMint.String(), "x": "1"})

	tests := []struct {
		name string
		ins  *Instruction
		want error
	}{
		{"wrong program", wrongProgram, ErrWrongProgram},
		{"unknown kind", unknown, ErrUnknownInstruction},
		{"stale", stale, ErrStaleInstruction},
		{"future", future, ErrStaleInstruction},
		{"unknown param field", extraField, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.engine.Submit(tt.ins); !errors.Is(err, tt.want) {
				t.Errorf("Submit() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubmit_ProgramErrorsPassThrough(t *testing.T) {
	env := setupEngine(t, 0)
	addrs := env.initPool(0)

	_, err := env.submit(env.alice, KindPause, staking.PoolParams{Pool: addrs.Pool})
	if !errors.Is(err, staking.ErrUnauthorized) {
		t.Fatalf("pause by alice = %v, want ErrUnauthorized", err)
	}
	se, ok := staking.AsError(err)
	if !ok || se.Kind != staking.KindAuthorization {
		t.Errorf("AsError = %+v, %v", se, ok)
	}
}

func TestSubmit_TokenInstructions(t *testing.T) {
	env := setupEngine(t, 0)
	other := types.Address{0x99}

	r := env.mustSubmit(env.alice, KindTokenOpen, TokenOpenParams{Mint: other})
	if r.Events[0].Name != "token_opened" {
		t.Errorf("event = %s, want token_opened", r.Events[0].Name)
	}
	if _, err := env.submit(env.alice, KindTokenOpen, TokenOpenParams{Mint: other}); !errors.Is(err, token.ErrAccountExists) {
		t.Errorf("second open = %v, want ErrAccountExists", err)
	}

	env.mustSubmit(env.alice, KindTokenTransfer, TokenTransferParams{
		Source:      token.AssociatedAddress(env.alice.Address(), testMint),
		Destination: token.AssociatedAddress(env.admin.Address(), testMint),
		Amount:      250,
	})
	if got := env.balance(env.admin); got != 10_000_250 {
		t.Errorf("admin balance = %d, want 10000250", got)
	}

	_, err := env.submit(env.admin, KindTokenTransfer, TokenTransferParams{
		Source:      token.AssociatedAddress(env.alice.Address(), testMint),
		Destination: token.AssociatedAddress(env.admin.Address(), testMint),
		Amount:      1,
	})
	if !errors.Is(err, token.ErrOwnerMismatch) {
		t.Errorf("transfer from alice signed by admin = %v, want ErrOwnerMismatch", err)
	}
}

func TestEngine_TimeNeverGoesBackwards(t *testing.T) {
	env := setupEngine(t, 0)
	env.clock.Advance(100)
	r := env.mustSubmit(env.alice, KindTokenOpen, TokenOpenParams{Mint: types.Address{0x10}})
	if r.Time != testStart+100 {
		t.Fatalf("receipt time = %d, want %d", r.Time, testStart+100)
	}

	env.clock.Set(testStart)
	r = env.mustSubmit(env.alice, KindTokenOpen, TokenOpenParams{Mint: types.Address{0x11}})
	if r.Time != testStart+100 {
		t.Errorf("time went backwards: %d", r.Time)
	}

	// A restarted engine resumes from the committed oracle time.
	restarted, err := New(env.db, Config{Program: testProgram, Clock: NewManualClock(0)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := restarted.Now(); got != testStart+100 {
		t.Errorf("restarted Now() = %d, want %d", got, testStart+100)
	}
}

func TestApplyGenesis_Once(t *testing.T) {
	env := setupEngine(t, 0)
	applied, err := env.engine.ApplyGenesis(Genesis{
		Mint:  testMint,
		Alloc: map[types.Address]uint64{env.alice.Address(): 1},
	})
	if err != nil || applied {
		t.Fatalf("second ApplyGenesis = %v, %v; want false, nil", applied, err)
	}
	if got := env.balance(env.alice); got != 10_000_000 {
		t.Errorf("alice = %d, want unchanged 10000000", got)
	}
}

func TestQueries(t *testing.T) {
	env := setupEngine(t, 0)
	addrs := env.initPool(0)
	env.mustSubmit(env.alice, KindCreateUser, staking.PoolParams{Pool: addrs.Pool})

	pools, err := env.engine.ListPools()
	if err != nil || len(pools) != 1 {
		t.Fatalf("ListPools = %d, %v", len(pools), err)
	}
	users, err := env.engine.ListUsers(addrs.Pool)
	if err != nil || len(users) != 1 {
		t.Fatalf("ListUsers = %d, %v", len(users), err)
	}
	byAddr, err := env.engine.UserByAddress(users[0].Address)
	if err != nil || byAddr.Authority != env.alice.Address() {
		t.Errorf("UserByAddress = %+v, %v", byAddr, err)
	}
	vault, err := env.engine.TokenAccount(addrs.Vault)
	if err != nil || vault.Owner != addrs.Pool {
		t.Errorf("vault = %+v, %v", vault, err)
	}
	if _, err := env.engine.Receipt(types.Hash{0x01}); !errors.Is(err, ErrReceiptNotFound) {
		t.Errorf("Receipt(unknown) = %v, want ErrReceiptNotFound", err)
	}
}
