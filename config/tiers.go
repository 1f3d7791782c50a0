package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"gopkg.in/yaml.v3"
)

// Seconds is a lock duration in seconds. In YAML it may be written as an
// integer number of seconds or as a Go duration string ("720h").
type Seconds uint64

// UnmarshalYAML accepts "300", 300 or "5m".
func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if n, err := strconv.ParseUint(node.Value, 10, 64); err == nil {
		*s = Seconds(n)
		return nil
	}
	d, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	if d < time.Second || d%time.Second != 0 {
		return fmt.Errorf("line %d: duration %q must be a whole number of seconds", node.Line, node.Value)
	}
	*s = Seconds(d / time.Second)
	return nil
}

// TierSpec is one tier as written in a pool file.
type TierSpec struct {
	Capacity     uint64  `yaml:"capacity"`
	StakeAmount  uint64  `yaml:"stake_amount"`
	LockDuration Seconds `yaml:"lock_duration"`
	RewardAmount uint64  `yaml:"reward_amount"`
}

// PoolFile describes a pool to initialize.
//
//	seed: main
//	mint: 0x...            # optional, defaults to the genesis mint
//	funding_source: 0x...  # optional, defaults to the authority
//	tiers:
//	  - {capacity: 3, stake_amount: 5000000, lock_duration: 720h, reward_amount: 5000000}
type PoolFile struct {
	Seed          string     `yaml:"seed"`
	Mint          string     `yaml:"mint"`
	FundingSource string     `yaml:"funding_source"`
	Tiers         []TierSpec `yaml:"tiers"`
}

// LoadPoolFile reads and parses a pool definition.
func LoadPoolFile(path string) (*PoolFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pool file: %w", err)
	}
	return ParsePoolFile(data)
}

// ParsePoolFile parses a YAML pool definition. Unknown keys are rejected.
func ParsePoolFile(data []byte) (*PoolFile, error) {
	var pf PoolFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("parsing pool file: %w", err)
	}
	if len(pf.Tiers) != staking.NumTiers {
		return nil, fmt.Errorf("pool file must define exactly %d tiers, got %d", staking.NumTiers, len(pf.Tiers))
	}
	return &pf, nil
}

// InitializeParams converts the file into initialize params. defaultMint and
// authority fill the optional fields.
func (pf *PoolFile) InitializeParams(defaultMint, authority types.Address) (staking.InitializeParams, error) {
	params := staking.InitializeParams{
		Seed:          pf.Seed,
		Mint:          defaultMint,
		FundingSource: authority,
	}
	if pf.Mint != "" {
		mint, err := types.ParseAddress(pf.Mint)
		if err != nil {
			return params, fmt.Errorf("mint: %w", err)
		}
		params.Mint = mint
	}
	if pf.FundingSource != "" {
		src, err := types.ParseAddress(pf.FundingSource)
		if err != nil {
			return params, fmt.Errorf("funding_source: %w", err)
		}
		params.FundingSource = src
	}
	for i, t := range pf.Tiers {
		if i >= staking.NumTiers {
			break
		}
		params.Tiers[i] = staking.NewTier(t.Capacity, t.StakeAmount, uint64(t.LockDuration), t.RewardAmount)
		if err := params.Tiers[i].Validate(); err != nil {
			return params, fmt.Errorf("tier %d: %w", i, err)
		}
	}
	return params, nil
}
