package staking

import (
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"github.com/rs/zerolog"
)

// Event is emitted by a successful instruction.
type Event interface {
	zerolog.LogObjectMarshaler
	EventName() string
}

// StakeEvent records a new stake.
type StakeEvent struct {
	Pool        types.Address `json:"pool"`
	User        types.Address `json:"user"`
	Tier        TierIndex     `json:"tier"`
	LockedUntil uint64        `json:"locked_until"`
	Amount      uint64        `json:"amount"`
}

func (StakeEvent) EventName() string { return "stake" }

func (e StakeEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("pool", e.Pool).Stringer("user", e.User).
		Uint8("tier", uint8(e.Tier)).Uint64("locked_until", e.LockedUntil).Uint64("amount", e.Amount)
}

// UnstakeEvent records principal returned to a participant.
type UnstakeEvent struct {
	Pool   types.Address `json:"pool"`
	User   types.Address `json:"user"`
	Tier   TierIndex     `json:"tier"`
	Amount uint64        `json:"amount"`
}

func (UnstakeEvent) EventName() string { return "unstake" }

func (e UnstakeEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("pool", e.Pool).Stringer("user", e.User).
		Uint8("tier", uint8(e.Tier)).Uint64("amount", e.Amount)
}

// ClaimEvent records reward paid to a participant.
type ClaimEvent struct {
	Pool   types.Address `json:"pool"`
	User   types.Address `json:"user"`
	Amount uint64        `json:"amount"`
}

func (ClaimEvent) EventName() string { return "claim" }

func (e ClaimEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("pool", e.Pool).Stringer("user", e.User).Uint64("amount", e.Amount)
}

// WithdrawEvent records surplus reward withdrawn by the authority.
type WithdrawEvent struct {
	Pool        types.Address `json:"pool"`
	Destination types.Address `json:"destination"`
	Amount      uint64        `json:"amount"`
}

func (WithdrawEvent) EventName() string { return "withdraw_extra" }

func (e WithdrawEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("pool", e.Pool).Stringer("destination", e.Destination).Uint64("amount", e.Amount)
}

// ReclaimEvent records a deleted record whose storage is credited to Receiver.
type ReclaimEvent struct {
	Account  types.Address `json:"account"`
	Receiver types.Address `json:"receiver"`
}

func (ReclaimEvent) EventName() string { return "reclaim" }

func (e ReclaimEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("account", e.Account).Stringer("receiver", e.Receiver)
}

// PoolEvent records a pool lifecycle change.
type PoolEvent struct {
	Name string        `json:"-"`
	Pool types.Address `json:"pool"`
}

// Pool lifecycle event names.
const (
	EventPoolInitialized = "pool_initialized"
	EventPoolPaused      = "pool_paused"
	EventPoolUnpaused    = "pool_unpaused"
	EventPoolClosed      = "pool_closed"
	EventPoolOpened      = "pool_opened"
)

func (e PoolEvent) EventName() string { return e.Name }

func (e PoolEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("pool", e.Pool)
}

// UserCreatedEvent records a new user record.
type UserCreatedEvent struct {
	Pool      types.Address `json:"pool"`
	User      types.Address `json:"user"`
	Authority types.Address `json:"authority"`
}

func (UserCreatedEvent) EventName() string { return "user_created" }

func (e UserCreatedEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("pool", e.Pool).Stringer("user", e.User).Stringer("authority", e.Authority)
}
