package rpc

import (
	"encoding/json"

	"github.com/Klingon-tech/klingnet-staking/internal/engine"
	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeNotFound          = -32000
	CodeInstructionFailed = -32010
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// FailureData is the data of a CodeInstructionFailed error.
type FailureData struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
}

// ── Param types ─────────────────────────────────────────────────────────

// SubmitParam is used by staking_submit.
type SubmitParam struct {
	Instruction *engine.Instruction `json:"instruction"`
}

// PoolParam is used by staking_getPool and staking_listUsers.
type PoolParam struct {
	Pool types.Address `json:"pool"`
}

// UserParam is used by staking_getUser. Either User, or Pool and
// Authority, must be set.
type UserParam struct {
	Pool      types.Address `json:"pool,omitempty"`
	Authority types.Address `json:"authority,omitempty"`
	User      types.Address `json:"user,omitempty"`
}

// DeriveParam is used by staking_deriveAddresses.
type DeriveParam struct {
	Authority   types.Address `json:"authority"`
	Seed        string        `json:"seed"`
	Participant types.Address `json:"participant,omitempty"`
}

// ReceiptParam is used by staking_getReceipt.
type ReceiptParam struct {
	ID types.Hash `json:"id"`
}

// AddressParam is used by token_getAccount.
type AddressParam struct {
	Address types.Address `json:"address"`
}

// BalanceParam is used by token_getBalance. Mint defaults to the genesis mint.
type BalanceParam struct {
	Owner types.Address `json:"owner"`
	Mint  types.Address `json:"mint,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// PoolResult is a pool record with its live vault balances.
type PoolResult struct {
	*staking.Pool
	VaultBalance       uint64 `json:"vault_balance"`
	RewardVaultBalance uint64 `json:"reward_vault_balance"`
	Outstanding        uint64 `json:"outstanding_reward"`
}

// UserListResult is returned by staking_listUsers.
type UserListResult struct {
	Pool  types.Address  `json:"pool"`
	Users []staking.User `json:"users"`
}

// BalanceResult is returned by token_getBalance.
type BalanceResult struct {
	Owner   types.Address `json:"owner"`
	Mint    types.Address `json:"mint"`
	Account types.Address `json:"account"`
	Balance uint64        `json:"balance"`
}

// NodeInfoResult is returned by node_getInfo.
type NodeInfoResult struct {
	Program types.ProgramID `json:"program"`
	Network string          `json:"network"`
	Mint    types.Address   `json:"mint"`
	Time    uint64          `json:"time"`
	Version string          `json:"version"`
}
