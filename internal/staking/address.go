package staking

import (
	"github.com/Klingon-tech/klingnet-staking/pkg/crypto"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// MaxSeedLen bounds the operator-chosen pool name.
const MaxSeedLen = 32

// Seed tags for program-derived addresses.
var (
	tagPool   = []byte("pool")
	tagVault  = []byte("vault")
	tagReward = []byte("reward")
)

// PoolAddress derives the pool record address of (authority, seed).
func PoolAddress(program types.ProgramID, authority types.Address, seed string) types.Address {
	return crypto.DeriveAddress(program, tagPool, authority[:], []byte(seed))
}

// UserAddress derives the user record address of authority in pool.
func UserAddress(program types.ProgramID, pool, authority types.Address) types.Address {
	return crypto.DeriveAddress(program, pool[:], authority[:])
}

// VaultAddress derives the principal custody account of pool.
func VaultAddress(program types.ProgramID, pool types.Address) types.Address {
	return crypto.DeriveAddress(program, tagVault, pool[:])
}

// RewardVaultAddress derives the reward custody account of pool.
func RewardVaultAddress(program types.ProgramID, pool types.Address) types.Address {
	return crypto.DeriveAddress(program, tagReward, pool[:])
}

// Addresses groups every address derived for one pool and, optionally, one
// participant.
type Addresses struct {
	Pool        types.Address `json:"pool"`
	Vault       types.Address `json:"vault"`
	RewardVault types.Address `json:"reward_vault"`
	User        types.Address `json:"user,omitempty"`
}

// DeriveAddresses returns the pool addresses for (authority, seed). When
// participant is non-zero the participant's user record address is included.
func DeriveAddresses(program types.ProgramID, authority types.Address, seed string, participant types.Address) Addresses {
	pool := PoolAddress(program, authority, seed)
	addrs := Addresses{
		Pool:        pool,
		Vault:       VaultAddress(program, pool),
		RewardVault: RewardVaultAddress(program, pool),
	}
	if !participant.IsZero() {
		addrs.User = UserAddress(program, pool, participant)
	}
	return addrs
}

func validSeed(seed string) error {
	if seed == "" || len(seed) > MaxSeedLen {
		return wrap(ErrInvalidSeed, "seed must be 1..%d bytes, got %d", MaxSeedLen, len(seed))
	}
	return nil
}
