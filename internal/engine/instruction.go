package engine

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-staking/pkg/crypto"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// Kind names an instruction.
type Kind string

// Staking instructions.
const (
	KindInitialize    Kind = "initialize"
	KindPause         Kind = "pause"
	KindUnpause       Kind = "unpause"
	KindClose         Kind = "close"
	KindOpen          Kind = "open"
	KindCreateUser    Kind = "createUser"
	KindStake         Kind = "stake"
	KindClaim         Kind = "claim"
	KindUnstake       Kind = "unstake"
	KindFreeUser      Kind = "freeUser"
	KindFreePool      Kind = "freePool"
	KindWithdrawExtra Kind = "withdrawExtra"
)

// Token instructions.
const (
	KindTokenOpen     Kind = "token.open"
	KindTokenTransfer Kind = "token.transfer"
)

// Kinds lists every instruction the engine accepts.
var Kinds = []Kind{
	KindInitialize, KindPause, KindUnpause, KindClose, KindOpen,
	KindCreateUser, KindStake, KindClaim, KindUnstake,
	KindFreeUser, KindFreePool, KindWithdrawExtra,
	KindTokenOpen, KindTokenTransfer,
}

// Known reports whether k is an accepted instruction kind.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// TokenOpenParams opens the signer's associated account for a mint.
type TokenOpenParams struct {
	Mint types.Address `json:"mint"`
}

// TokenTransferParams moves amount between token accounts. The signer must
// own the source account.
type TokenTransferParams struct {
	Source      types.Address `json:"source"`
	Destination types.Address `json:"destination"`
	Amount      uint64        `json:"amount"`
}

// Instruction is a signed request to run one program instruction.
type Instruction struct {
	Program   types.ProgramID `json:"program"`
	Kind      Kind            `json:"kind"`
	Signer    types.HexBytes  `json:"signer"` // 33-byte compressed public key.
	Timestamp uint64          `json:"timestamp"`
	Nonce     uint64          `json:"nonce"`
	Params    json.RawMessage `json:"params"`
	Signature types.HexBytes  `json:"signature,omitempty"`
}

// NewInstruction builds an unsigned instruction with params encoded as JSON.
func NewInstruction(program types.ProgramID, kind Kind, params interface{}, timestamp, nonce uint64) (*Instruction, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", kind, err)
	}
	return &Instruction{
		Program:   program,
		Kind:      kind,
		Timestamp: timestamp,
		Nonce:     nonce,
		Params:    raw,
	}, nil
}

// SigningBytes returns the canonical encoding of every field except the
// signature. Params are compacted so whitespace does not change the hash.
func (ins *Instruction) SigningBytes() []byte {
	var buf []byte

	buf = append(buf, ins.Program[:]...)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ins.Kind)))
	buf = append(buf, ins.Kind...)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ins.Signer)))
	buf = append(buf, ins.Signer...)

	buf = binary.LittleEndian.AppendUint64(buf, ins.Timestamp)
	buf = binary.LittleEndian.AppendUint64(buf, ins.Nonce)

	params := compactParams(ins.Params)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(params)))
	buf = append(buf, params...)

	return buf
}

// Hash returns the instruction ID: BLAKE3 of the signing bytes.
func (ins *Instruction) Hash() types.Hash {
	return crypto.Hash(ins.SigningBytes())
}

// Sign sets the signer and signature using key.
func (ins *Instruction) Sign(key crypto.Signer) error {
	ins.Signer = key.PublicKey()
	hash := ins.Hash()
	sig, err := key.Sign(hash[:])
	if err != nil {
		return fmt.Errorf("sign instruction: %w", err)
	}
	ins.Signature = sig
	return nil
}

// Verify checks the signer public key and the signature over the
// instruction hash.
func (ins *Instruction) Verify() error {
	if err := crypto.ValidatePublicKey(ins.Signer); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if len(ins.Signature) == 0 {
		return fmt.Errorf("%w: missing signature", ErrBadSignature)
	}
	hash := ins.Hash()
	if !crypto.VerifySignature(hash[:], ins.Signature, ins.Signer) {
		return ErrBadSignature
	}
	return nil
}

// SignerAddress returns the address of the signing key.
func (ins *Instruction) SignerAddress() types.Address {
	return crypto.AddressFromPubKey(ins.Signer)
}

// DecodeParams unmarshals the params into target, rejecting unknown fields.
func (ins *Instruction) DecodeParams(target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(ins.Params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %s params: %v", ErrInvalidParams, ins.Kind, err)
	}
	return nil
}

func compactParams(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
