// Package crypto provides the hashing, key and signature primitives of the
// staking runtime.
package crypto

import (
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// AddressFromPubKey derives an address from a compressed public key.
// Address = BLAKE3(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// ProgramIDFromName derives a program identity from a human-readable name.
func ProgramIDFromName(name string) types.ProgramID {
	return types.ProgramID(Hash([]byte(name)))
}

// DeriveAddress computes a program-derived address.
//
// Address = BLAKE3(program || len(seed0) || seed0 || ... )[:20], where each
// length is a big-endian uint16. Length-prefixing keeps ("ab","c") and
// ("a","bc") distinct.
func DeriveAddress(program types.ProgramID, seeds ...[]byte) types.Address {
	hasher := blake3.New()
	hasher.Write(program[:])
	var lenBuf [2]byte
	for _, seed := range seeds {
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(seed)))
		hasher.Write(lenBuf[:])
		hasher.Write(seed)
	}
	sum := hasher.Sum(nil)
	var addr types.Address
	copy(addr[:], sum[:types.AddressSize])
	return addr
}
