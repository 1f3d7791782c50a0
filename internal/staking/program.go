// Package staking implements a tiered, time-locked staking pool with linear
// reward accrual.
//
// Every instruction runs against the accounts it names through a Processor.
// The processor validates, computes the new state and issues custody
// transfers through the token ledger, all on the same storage view. It never
// commits: the caller commits or discards that view as a unit, so a failed
// instruction leaves no trace.
package staking

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-staking/internal/token"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// Custody is the token-custody primitive the pool moves funds through.
type Custody interface {
	Open(addr, mint, owner types.Address) (*token.Account, error)
	Transfer(source, destination, authority types.Address, amount uint64) error
	Balance(addr types.Address) (uint64, error)
	Close(addr, authority types.Address) error
}

// Processor executes staking instructions at a fixed oracle time.
// A Processor is single-use: create one per instruction.
type Processor struct {
	program types.ProgramID
	store   *Store
	custody Custody
	now     uint64
	events  []Event
}

// NewProcessor creates a processor for one instruction.
func NewProcessor(program types.ProgramID, store *Store, custody Custody, now uint64) *Processor {
	return &Processor{
		program: program,
		store:   store,
		custody: custody,
		now:     now,
	}
}

// Events returns the events emitted so far.
func (p *Processor) Events() []Event {
	return p.events
}

// Now returns the oracle time the processor runs at.
func (p *Processor) Now() uint64 {
	return p.now
}

func (p *Processor) emit(e Event) {
	p.events = append(p.events, e)
}

// loadPool reads a pool record.
func (p *Processor) loadPool(addr types.Address) (*Pool, error) {
	return p.store.GetPool(addr)
}

// loadUser reads the record of signer in pool and checks its back-references.
func (p *Processor) loadUser(pool *Pool, signer types.Address) (*User, error) {
	addr := UserAddress(p.program, pool.Address, signer)
	u, err := p.store.GetUser(pool.Address, addr)
	if err != nil {
		return nil, err
	}
	if u.Pool != pool.Address || u.Authority != signer {
		return nil, wrap(ErrAccountMismatch, "user %s", addr)
	}
	return u, nil
}

// resolve returns explicit when set, else signer's associated token account
// for the pool mint.
func resolve(explicit *types.Address, signer types.Address, pool *Pool) types.Address {
	if explicit != nil && !explicit.IsZero() {
		return *explicit
	}
	return token.AssociatedAddress(signer, pool.Mint)
}

// transfer wraps custody failures with the leg that failed.
func (p *Processor) transfer(leg string, source, destination, authority types.Address, amount uint64) error {
	if err := p.custody.Transfer(source, destination, authority, amount); err != nil {
		return fmt.Errorf("%s transfer: %w", leg, err)
	}
	return nil
}

// IsAccountNotFound reports whether err means a named record is missing,
// either a staking record or a token account.
func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, token.ErrAccountNotFound)
}
