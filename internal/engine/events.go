package engine

import (
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"github.com/rs/zerolog"
)

// TokenOpenedEvent records a new associated token account.
type TokenOpenedEvent struct {
	Account types.Address `json:"account"`
	Owner   types.Address `json:"owner"`
	Mint    types.Address `json:"mint"`
}

func (TokenOpenedEvent) EventName() string { return "token_opened" }

func (e TokenOpenedEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("account", e.Account.String()).Str("owner", e.Owner.String()).Str("mint", e.Mint.String())
}

// TokenTransferEvent records a wallet-initiated transfer.
type TokenTransferEvent struct {
	Source      types.Address `json:"source"`
	Destination types.Address `json:"destination"`
	Amount      uint64        `json:"amount"`
}

func (TokenTransferEvent) EventName() string { return "token_transfer" }

func (e TokenTransferEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("source", e.Source.String()).Str("destination", e.Destination.String()).Uint64("amount", e.Amount)
}
