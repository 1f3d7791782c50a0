package staking

import (
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// User is one participant's ledger of stakes in one pool.
type User struct {
	Address   types.Address         `json:"address"`
	Pool      types.Address         `json:"pool"`
	Authority types.Address         `json:"authority"`
	Stakes    [NumTiers]StakeStatus `json:"stakes"`
}

// HasStaking reports whether any slot is actively staking.
func (u *User) HasStaking() bool {
	for _, s := range u.Stakes {
		if s.Kind() == StatusStaking {
			return true
		}
	}
	return false
}

// Settled reports whether every slot is None or Used.
func (u *User) Settled() bool {
	for _, s := range u.Stakes {
		if !s.Settled() {
			return false
		}
	}
	return true
}
