// Package token implements the token-custody ledger.
//
// Balances live in token accounts. Each account holds a single mint and is
// controlled by one owner, which may be a signer or a program-derived
// address such as a staking vault. Transfers conserve balance: the amount
// debited from the source is exactly the amount credited to the destination.
package token

import (
	"errors"

	"github.com/Klingon-tech/klingnet-staking/pkg/crypto"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// ProgramID namespaces every address the token ledger derives.
var ProgramID = crypto.ProgramIDFromName("token")

// Ledger errors.
var (
	ErrAccountNotFound   = errors.New("token account not found")
	ErrAccountExists     = errors.New("token account already exists")
	ErrAccountNotEmpty   = errors.New("token account balance is not zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOwnerMismatch     = errors.New("authority does not own the source account")
	ErrMintMismatch      = errors.New("accounts hold different mints")
	ErrOverflow          = errors.New("token amount overflow")
)

// Account is a token account.
type Account struct {
	Address types.Address `json:"address"`
	Mint    types.Address `json:"mint"`
	Owner   types.Address `json:"owner"`
	Amount  uint64        `json:"amount"`
}

// AssociatedAddress returns the canonical token account of owner for mint.
func AssociatedAddress(owner, mint types.Address) types.Address {
	return crypto.DeriveAddress(ProgramID, owner[:], mint[:])
}
