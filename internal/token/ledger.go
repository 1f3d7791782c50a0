package token

import (
	"fmt"
	"math"

	"github.com/Klingon-tech/klingnet-staking/internal/storage"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// Ledger performs balance-conserving operations on token accounts.
// It holds no state of its own; every call reads and writes through the
// underlying DB, which is normally an instruction's overlay.
type Ledger struct {
	store *Store
}

// NewLedger creates a ledger over db.
func NewLedger(db storage.DB) *Ledger {
	return &Ledger{store: NewStore(db)}
}

// Store returns the underlying account store.
func (l *Ledger) Store() *Store {
	return l.store
}

// Open creates an empty token account at addr.
func (l *Ledger) Open(addr, mint, owner types.Address) (*Account, error) {
	exists, err := l.store.Has(addr)
	if err != nil {
		return nil, fmt.Errorf("token open: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	acct := &Account{Address: addr, Mint: mint, Owner: owner}
	if err := l.store.Put(acct); err != nil {
		return nil, fmt.Errorf("token open: %w", err)
	}
	return acct, nil
}

// OpenAssociated opens owner's associated account for mint.
func (l *Ledger) OpenAssociated(owner, mint types.Address) (*Account, error) {
	return l.Open(AssociatedAddress(owner, mint), mint, owner)
}

// Get returns the account at addr.
func (l *Ledger) Get(addr types.Address) (*Account, error) {
	return l.store.Get(addr)
}

// Balance returns the amount held at addr.
func (l *Ledger) Balance(addr types.Address) (uint64, error) {
	acct, err := l.store.Get(addr)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

// Transfer moves amount from source to destination. authority must own
// source and both accounts must hold the same mint.
func (l *Ledger) Transfer(source, destination, authority types.Address, amount uint64) error {
	src, err := l.store.Get(source)
	if err != nil {
		return fmt.Errorf("transfer source: %w", err)
	}
	dst, err := l.store.Get(destination)
	if err != nil {
		return fmt.Errorf("transfer destination: %w", err)
	}
	if src.Owner != authority {
		return fmt.Errorf("%w: %s owned by %s", ErrOwnerMismatch, source, src.Owner)
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s vs %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, src.Amount, amount)
	}
	if source == destination || amount == 0 {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return fmt.Errorf("transfer destination: %w", ErrOverflow)
	}

	src.Amount -= amount
	dst.Amount += amount
	if err := l.store.Put(src); err != nil {
		return fmt.Errorf("transfer debit: %w", err)
	}
	if err := l.store.Put(dst); err != nil {
		return fmt.Errorf("transfer credit: %w", err)
	}
	return nil
}

// Close deletes an empty account. authority must own it.
func (l *Ledger) Close(addr, authority types.Address) error {
	acct, err := l.store.Get(addr)
	if err != nil {
		return fmt.Errorf("token close: %w", err)
	}
	if acct.Owner != authority {
		return fmt.Errorf("%w: %s owned by %s", ErrOwnerMismatch, addr, acct.Owner)
	}
	if acct.Amount != 0 {
		return fmt.Errorf("%w: %s holds %d", ErrAccountNotEmpty, addr, acct.Amount)
	}
	return l.store.Delete(addr)
}

// Credit adds amount to an existing account without a matching debit.
// Only genesis allocation uses it.
func (l *Ledger) Credit(addr types.Address, amount uint64) error {
	acct, err := l.store.Get(addr)
	if err != nil {
		return fmt.Errorf("token credit: %w", err)
	}
	if acct.Amount > math.MaxUint64-amount {
		return fmt.Errorf("token credit: %w", ErrOverflow)
	}
	acct.Amount += amount
	return l.store.Put(acct)
}
