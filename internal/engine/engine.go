// Package engine is the runtime that hosts the staking program.
//
// It sequences signed instructions, supplies the time oracle and gives every
// instruction its own storage overlay. An instruction either commits all of
// its writes in one batch (program state, token balances, its receipt and
// the oracle time) or none of them.
package engine

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	klog "github.com/Klingon-tech/klingnet-staking/internal/log"
	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/internal/storage"
	"github.com/Klingon-tech/klingnet-staking/internal/token"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"github.com/rs/zerolog"
)

// Top-level key namespaces.
var (
	prefixStaking = []byte("s/")
	prefixToken   = []byte("t/")
	prefixEngine  = []byte("e/")
)

// Engine-owned keys, relative to prefixEngine.
var (
	keyTime    = []byte("t")  // t -> last oracle time (8 bytes BE)
	keyGenesis = []byte("g")  // g -> genesis marker
	prefixRcpt = []byte("r/") // r/<id(32)> -> Receipt JSON
)

// Config holds engine settings.
type Config struct {
	Program types.ProgramID
	Clock   Clock  // nil uses SystemClock.
	MaxSkew uint64 // Max seconds between envelope timestamp and oracle time (0 = unchecked).
}

// Engine executes instructions one at a time against db.
type Engine struct {
	mu      sync.Mutex // Serializes Submit and ApplyGenesis.
	db      storage.DB
	program types.ProgramID
	clock   *MonotonicClock
	maxSkew uint64
	logger  zerolog.Logger
	metrics *engineMetrics
}

// New creates an engine. The clock resumes from the last committed oracle
// time so time never goes backwards across restarts.
func New(db storage.DB, cfg Config) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	if cfg.Program.IsZero() {
		return nil, fmt.Errorf("program id is zero")
	}
	if _, ok := db.(storage.Batcher); !ok {
		return nil, fmt.Errorf("storage db does not support atomic batches")
	}
	source := cfg.Clock
	if source == nil {
		source = SystemClock{}
	}

	floor, err := loadTime(storage.NewPrefixDB(db, prefixEngine))
	if err != nil {
		return nil, err
	}

	return &Engine{
		db:      db,
		program: cfg.Program,
		clock:   NewMonotonicClock(source, floor),
		maxSkew: cfg.MaxSkew,
		logger:  klog.Engine,
		metrics: metrics(),
	}, nil
}

// Program returns the program ID instructions must address.
func (e *Engine) Program() types.ProgramID {
	return e.program
}

// Now returns the current oracle time.
func (e *Engine) Now() uint64 {
	return e.clock.Now()
}

// Submit verifies and executes ins. On any error nothing is written.
func (e *Engine) Submit(ins *Instruction) (*Receipt, error) {
	if ins == nil {
		return nil, fmt.Errorf("%w: nil instruction", ErrInvalidParams)
	}
	start := time.Now()
	receipt, err := e.submit(ins)
	e.metrics.observe(ins.Kind, err, start)

	if err != nil {
		e.logger.Debug().Err(err).
			Str("kind", string(ins.Kind)).
			Str("signer", ins.SignerAddress().String()).
			Msg("Instruction rejected")
		return nil, err
	}

	e.logger.Info().
		Str("id", receipt.ID.String()).
		Str("kind", string(receipt.Kind)).
		Str("signer", receipt.Signer.String()).
		Uint64("time", receipt.Time).
		Int("events", len(receipt.Events)).
		Msg("Instruction committed")
	return receipt, nil
}

func (e *Engine) submit(ins *Instruction) (*Receipt, error) {
	if ins.Program != e.program {
		return nil, fmt.Errorf("%w: %s", ErrWrongProgram, ins.Program)
	}
	if !ins.Kind.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, ins.Kind)
	}
	if err := ins.Verify(); err != nil {
		return nil, err
	}
	id := ins.Hash()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if e.maxSkew > 0 && absDiff(ins.Timestamp, now) > e.maxSkew {
		return nil, fmt.Errorf("%w: timestamp %d, oracle %d, max skew %d",
			ErrStaleInstruction, ins.Timestamp, now, e.maxSkew)
	}

	ov := storage.NewOverlay(e.db)
	meta := storage.NewPrefixDB(ov, prefixEngine)

	seen, err := meta.Has(receiptKey(id))
	if err != nil {
		ov.Discard()
		return nil, fmt.Errorf("receipt lookup: %w", err)
	}
	if seen {
		ov.Discard()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateInstruction, id)
	}

	events, err := e.execute(ov, ins, now)
	if err != nil {
		ov.Discard()
		return nil, err
	}

	records, err := newEventRecords(events)
	if err != nil {
		ov.Discard()
		return nil, err
	}
	receipt := &Receipt{
		ID:     id,
		Kind:   ins.Kind,
		Signer: ins.SignerAddress(),
		Time:   now,
		Events: records,
	}
	if err := putReceipt(meta, receipt); err != nil {
		ov.Discard()
		return nil, err
	}
	if err := storeTime(meta, now); err != nil {
		ov.Discard()
		return nil, err
	}

	if err := ov.Commit(); err != nil {
		return nil, fmt.Errorf("commit instruction %s: %w", id, err)
	}
	e.metrics.oracleTime.Set(float64(now))

	for _, ev := range events {
		klog.Staking.Info().Str("event", ev.EventName()).EmbedObject(ev).Msg("Event")
	}
	return receipt, nil
}

// execute dispatches ins to the program on ov.
func (e *Engine) execute(ov storage.DB, ins *Instruction, now uint64) ([]staking.Event, error) {
	signer := ins.SignerAddress()
	store := staking.NewStore(storage.NewPrefixDB(ov, prefixStaking))
	ledger := token.NewLedger(storage.NewPrefixDB(ov, prefixToken))
	proc := staking.NewProcessor(e.program, store, ledger, now)

	var err error
	switch ins.Kind {
	case KindInitialize:
		err = run(ins, func(p staking.InitializeParams) error {
			_, err := proc.Initialize(signer, p)
			return err
		})
	case KindPause:
		err = run(ins, func(p staking.PoolParams) error { return proc.Pause(signer, p) })
	case KindUnpause:
		err = run(ins, func(p staking.PoolParams) error { return proc.Unpause(signer, p) })
	case KindClose:
		err = run(ins, func(p staking.PoolParams) error { return proc.Close(signer, p) })
	case KindOpen:
		err = run(ins, func(p staking.PoolParams) error { return proc.Open(signer, p) })
	case KindCreateUser:
		err = run(ins, func(p staking.PoolParams) error {
			_, err := proc.CreateUser(signer, p)
			return err
		})
	case KindStake:
		err = run(ins, func(p staking.StakeParams) error { return proc.Stake(signer, p) })
	case KindClaim:
		err = run(ins, func(p staking.ClaimParams) error {
			_, err := proc.Claim(signer, p)
			return err
		})
	case KindUnstake:
		err = run(ins, func(p staking.UnstakeParams) error { return proc.Unstake(signer, p) })
	case KindFreeUser:
		err = run(ins, func(p staking.FreeUserParams) error { return proc.FreeUser(signer, p) })
	case KindFreePool:
		err = run(ins, func(p staking.FreePoolParams) error { return proc.FreePool(signer, p) })
	case KindWithdrawExtra:
		err = run(ins, func(p staking.WithdrawExtraParams) error {
			_, err := proc.WithdrawExtra(signer, p)
			return err
		})
	case KindTokenOpen:
		var acct *token.Account
		err = run(ins, func(p TokenOpenParams) error {
			var err error
			acct, err = ledger.OpenAssociated(signer, p.Mint)
			return err
		})
		if err == nil {
			return []staking.Event{TokenOpenedEvent{Account: acct.Address, Owner: acct.Owner, Mint: acct.Mint}}, nil
		}
	case KindTokenTransfer:
		var ev TokenTransferEvent
		err = run(ins, func(p TokenTransferParams) error {
			ev = TokenTransferEvent{Source: p.Source, Destination: p.Destination, Amount: p.Amount}
			return ledger.Transfer(p.Source, p.Destination, signer, p.Amount)
		})
		if err == nil {
			return []staking.Event{ev}, nil
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownInstruction, ins.Kind)
	}
	if err != nil {
		return nil, err
	}
	return proc.Events(), nil
}

// run decodes the instruction params as P and calls fn.
func run[P any](ins *Instruction, fn func(P) error) error {
	var params P
	if err := ins.DecodeParams(&params); err != nil {
		return err
	}
	return fn(params)
}

// Genesis is the initial token allocation.
type Genesis struct {
	Mint      types.Address
	Timestamp uint64
	Alloc     map[types.Address]uint64
}

// ApplyGenesis opens and credits the associated account of every allocation
// and raises the oracle floor to the genesis timestamp. It runs once per
// database; later calls return false.
func (e *Engine) ApplyGenesis(g Genesis) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ov := storage.NewOverlay(e.db)
	meta := storage.NewPrefixDB(ov, prefixEngine)
	done, err := meta.Has(keyGenesis)
	if err != nil {
		ov.Discard()
		return false, fmt.Errorf("genesis lookup: %w", err)
	}
	if done {
		ov.Discard()
		return false, nil
	}

	owners := make([]types.Address, 0, len(g.Alloc))
	for owner := range g.Alloc {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		return string(owners[i][:]) < string(owners[j][:])
	})

	ledger := token.NewLedger(storage.NewPrefixDB(ov, prefixToken))
	for _, owner := range owners {
		acct, err := ledger.OpenAssociated(owner, g.Mint)
		if err != nil {
			ov.Discard()
			return false, fmt.Errorf("genesis alloc %s: %w", owner, err)
		}
		if err := ledger.Credit(acct.Address, g.Alloc[owner]); err != nil {
			ov.Discard()
			return false, fmt.Errorf("genesis alloc %s: %w", owner, err)
		}
	}

	if err := meta.Put(keyGenesis, []byte{1}); err != nil {
		ov.Discard()
		return false, err
	}
	floor := e.clock.Now()
	if g.Timestamp > floor {
		floor = g.Timestamp
	}
	if err := storeTime(meta, floor); err != nil {
		ov.Discard()
		return false, err
	}
	if err := ov.Commit(); err != nil {
		return false, fmt.Errorf("commit genesis: %w", err)
	}
	e.clock.Raise(floor)

	e.logger.Info().
		Int("accounts", len(owners)).
		Str("mint", g.Mint.String()).
		Uint64("timestamp", g.Timestamp).
		Msg("Genesis applied")
	return true, nil
}

// ── Queries ─────────────────────────────────────────────────────────────
//
// Queries read committed state and run concurrently with Submit.

// Pool returns the pool record at addr.
func (e *Engine) Pool(addr types.Address) (*staking.Pool, error) {
	return e.stakingStore().GetPool(addr)
}

// ListPools returns every pool record.
func (e *Engine) ListPools() ([]staking.Pool, error) {
	pools := []staking.Pool{}
	err := e.stakingStore().ForEachPool(func(p *staking.Pool) error {
		pools = append(pools, *p)
		return nil
	})
	return pools, err
}

// User returns authority's record in pool.
func (e *Engine) User(pool, authority types.Address) (*staking.User, error) {
	return e.stakingStore().GetUser(pool, staking.UserAddress(e.program, pool, authority))
}

// UserByAddress returns the user record at addr.
func (e *Engine) UserByAddress(addr types.Address) (*staking.User, error) {
	return e.stakingStore().GetUserByAddress(addr)
}

// ListUsers returns every user record of pool.
func (e *Engine) ListUsers(pool types.Address) ([]staking.User, error) {
	return e.stakingStore().ListUsers(pool)
}

// DeriveAddresses returns the addresses of (authority, seed) and, when
// participant is non-zero, the participant's user record.
func (e *Engine) DeriveAddresses(authority types.Address, seed string, participant types.Address) staking.Addresses {
	return staking.DeriveAddresses(e.program, authority, seed, participant)
}

// TokenAccount returns the token account at addr.
func (e *Engine) TokenAccount(addr types.Address) (*token.Account, error) {
	return e.ledger().Get(addr)
}

// Balance returns the balance of owner's associated account for mint.
func (e *Engine) Balance(owner, mint types.Address) (uint64, error) {
	return e.ledger().Balance(token.AssociatedAddress(owner, mint))
}

// Receipt returns the receipt of a committed instruction.
func (e *Engine) Receipt(id types.Hash) (*Receipt, error) {
	data, err := storage.NewPrefixDB(e.db, prefixEngine).Get(receiptKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("receipt get: %w", err)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("receipt unmarshal: %w", err)
	}
	return &r, nil
}

func (e *Engine) stakingStore() *staking.Store {
	return staking.NewStore(storage.NewPrefixDB(e.db, prefixStaking))
}

func (e *Engine) ledger() *token.Ledger {
	return token.NewLedger(storage.NewPrefixDB(e.db, prefixToken))
}

// ── Engine keys ─────────────────────────────────────────────────────────

func receiptKey(id types.Hash) []byte {
	key := make([]byte, 0, len(prefixRcpt)+types.HashSize)
	key = append(key, prefixRcpt...)
	return append(key, id[:]...)
}

func putReceipt(db storage.DB, r *Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("receipt marshal: %w", err)
	}
	return db.Put(receiptKey(r.ID), data)
}

func loadTime(db storage.DB) (uint64, error) {
	data, err := db.Get(keyTime)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load oracle time: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("load oracle time: corrupt entry")
	}
	return binary.BigEndian.Uint64(data), nil
}

func storeTime(db storage.DB, t uint64) error {
	return db.Put(keyTime, binary.BigEndian.AppendUint64(nil, t))
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
