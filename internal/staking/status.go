package staking

import (
	"encoding/json"
	"fmt"
)

// StatusKind is the variant tag of a StakeStatus.
type StatusKind uint8

// Stake slot variants. A slot only ever moves forward through this list.
const (
	StatusNone StatusKind = iota
	StatusStaking
	StatusReady
	StatusUsed
)

var statusNames = [...]string{"none", "staking", "ready", "used"}

func (k StatusKind) String() string {
	if int(k) < len(statusNames) {
		return statusNames[k]
	}
	return fmt.Sprintf("status(%d)", k)
}

// Staking is the payload of an active stake.
type Staking struct {
	AmountStaked uint64 `json:"amount_staked"`
	LastClaimed  uint64 `json:"last_claimed"`
	LockedUntil  uint64 `json:"locked_until"`
	RewardPaid   uint64 `json:"reward_paid"`
}

// StakeStatus is the state of one (user, tier) slot. The payload exists
// only for StatusStaking. The zero value is StatusNone.
type StakeStatus struct {
	kind    StatusKind
	staking Staking
}

// None returns an empty slot.
func None() StakeStatus { return StakeStatus{} }

// Ready returns a slot whose reward has been fully paid.
func Ready() StakeStatus { return StakeStatus{kind: StatusReady} }

// Used returns a slot whose principal has been returned.
func Used() StakeStatus { return StakeStatus{kind: StatusUsed} }

// NewStaking returns an active stake.
func NewStaking(s Staking) StakeStatus {
	return StakeStatus{kind: StatusStaking, staking: s}
}

// Kind returns the variant tag.
func (s StakeStatus) Kind() StatusKind { return s.kind }

// Staking returns the active-stake payload and true when the slot is staking.
func (s StakeStatus) Staking() (Staking, bool) {
	if s.kind != StatusStaking {
		return Staking{}, false
	}
	return s.staking, true
}

// IsNone reports whether the slot has never been staked.
func (s StakeStatus) IsNone() bool { return s.kind == StatusNone }

// Settled reports whether the slot carries no obligation (None or Used).
func (s StakeStatus) Settled() bool {
	return s.kind == StatusNone || s.kind == StatusUsed
}

func (s StakeStatus) String() string {
	if p, ok := s.Staking(); ok {
		return fmt.Sprintf("staking{amount=%d last_claimed=%d locked_until=%d reward_paid=%d}",
			p.AmountStaked, p.LastClaimed, p.LockedUntil, p.RewardPaid)
	}
	return s.kind.String()
}

type stakeStatusJSON struct {
	Status   string `json:"status"`
	*Staking `json:",omitempty"`
}

// MarshalJSON encodes the slot as {"status": "...", <payload fields>}.
func (s StakeStatus) MarshalJSON() ([]byte, error) {
	out := stakeStatusJSON{Status: s.kind.String()}
	if p, ok := s.Staking(); ok {
		out.Staking = &p
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *StakeStatus) UnmarshalJSON(data []byte) error {
	var in stakeStatusJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Status {
	case "none":
		*s = None()
	case "staking":
		if in.Staking == nil {
			return fmt.Errorf("staking status without payload")
		}
		*s = NewStaking(*in.Staking)
	case "ready":
		*s = Ready()
	case "used":
		*s = Used()
	default:
		return fmt.Errorf("unknown stake status %q", in.Status)
	}
	return nil
}
