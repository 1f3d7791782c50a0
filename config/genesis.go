package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/Klingon-tech/klingnet-staking/pkg/crypto"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// =============================================================================
// Program identity (immutable, defined in genesis)
// These MUST match across every node and client of a network.
// =============================================================================

// ProgramName is hashed into the default program id.
const ProgramName = "klingnet-staking-v1"

// DefaultProgramID is the program id of the built-in genesis configurations.
var DefaultProgramID = crypto.ProgramIDFromName(ProgramName)

// Well-known test identity. Never fund it on mainnet.
const (
	// TestnetMnemonic is the well-known seed phrase for testnet tooling.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"
)

// MintFor derives the pool token mint address for a symbol.
func MintFor(symbol string) types.Address {
	return crypto.DeriveAddress(crypto.ProgramIDFromName("mint"), []byte(symbol))
}

// Genesis holds the program identity and the initial token allocation.
type Genesis struct {
	Network   NetworkType     `json:"network"`
	ProgramID types.ProgramID `json:"program_id"`
	Symbol    string          `json:"symbol,omitempty"`
	Mint      types.Address   `json:"mint"`
	Timestamp uint64          `json:"timestamp"`

	// Initial allocations (owner address -> balance in base units).
	Alloc map[string]uint64 `json:"alloc"`
}

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		Network:   Mainnet,
		ProgramID: DefaultProgramID,
		Symbol:    "KSTK",
		Mint:      MintFor("KSTK"),
		Timestamp: 1770734103, // 2026-02-10
		Alloc:     map[string]uint64{},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.Network = Testnet
	g.Symbol = "tKSTK"
	g.Mint = MintFor("tKSTK")
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ProgramID.IsZero() {
		return fmt.Errorf("program_id is required")
	}
	if g.Mint.IsZero() {
		return fmt.Errorf("mint is required")
	}
	if g.Network != "" && g.Network != Mainnet && g.Network != Testnet {
		return fmt.Errorf("unknown network %q", g.Network)
	}

	// Every allocation must parse and the total must fit in a balance.
	var total uint64
	for addrStr, v := range g.Alloc {
		if _, err := types.ParseAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		if total > math.MaxUint64-v {
			return fmt.Errorf("genesis allocations overflow")
		}
		total += v
	}
	return nil
}

// Allocations returns the parsed alloc map. Call Validate first.
func (g *Genesis) Allocations() (map[types.Address]uint64, error) {
	out := make(map[types.Address]uint64, len(g.Alloc))
	for addrStr, v := range g.Alloc {
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		out[addr] += v
	}
	return out, nil
}

// TotalAlloc returns the sum of every allocation.
func (g *Genesis) TotalAlloc() uint64 {
	var total uint64
	for _, v := range g.Alloc {
		total += v
	}
	return total
}

// Hash returns a BLAKE3 hash of the genesis configuration.
// Used to detect genesis mismatches between a node and its data directory.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
