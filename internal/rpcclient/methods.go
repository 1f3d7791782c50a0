package rpcclient

import (
	"context"
	"errors"

	"github.com/Klingon-tech/klingnet-staking/internal/engine"
	"github.com/Klingon-tech/klingnet-staking/internal/rpc"
	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/internal/token"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// reasonDuplicate is the failure code the node reports for a replayed
// envelope.
const reasonDuplicate = "DuplicateInstruction"

// Submit sends a signed instruction and returns its receipt. Submission is
// idempotent: when the node reports the envelope as already processed (for
// example a retry after the committed attempt's response was lost), the
// stored receipt is returned.
func (c *Client) Submit(ctx context.Context, ins *engine.Instruction) (*engine.Receipt, error) {
	var receipt engine.Receipt
	err := c.CallContext(ctx, "staking_submit", rpc.SubmitParam{Instruction: ins}, &receipt)
	if isDuplicate(err) {
		return c.Receipt(ctx, ins.Hash())
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func isDuplicate(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == rpc.CodeInstructionFailed && rpcErr.Reason == reasonDuplicate
}

// Pool returns a pool with its vault balances.
func (c *Client) Pool(ctx context.Context, pool types.Address) (*rpc.PoolResult, error) {
	var out rpc.PoolResult
	if err := c.CallContext(ctx, "staking_getPool", rpc.PoolParam{Pool: pool}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPools returns every pool.
func (c *Client) ListPools(ctx context.Context) ([]rpc.PoolResult, error) {
	var out []rpc.PoolResult
	if err := c.CallContext(ctx, "staking_listPools", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// User returns authority's record in pool.
func (c *Client) User(ctx context.Context, pool, authority types.Address) (*staking.User, error) {
	return c.user(ctx, rpc.UserParam{Pool: pool, Authority: authority})
}

// UserByAddress returns the user record stored at addr.
func (c *Client) UserByAddress(ctx context.Context, addr types.Address) (*staking.User, error) {
	return c.user(ctx, rpc.UserParam{User: addr})
}

func (c *Client) user(ctx context.Context, params rpc.UserParam) (*staking.User, error) {
	var out staking.User
	if err := c.CallContext(ctx, "staking_getUser", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers returns the user records of pool.
func (c *Client) ListUsers(ctx context.Context, pool types.Address) ([]staking.User, error) {
	var out rpc.UserListResult
	if err := c.CallContext(ctx, "staking_listUsers", rpc.PoolParam{Pool: pool}, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// DeriveAddresses asks the node for the addresses of (authority, seed).
func (c *Client) DeriveAddresses(ctx context.Context, authority types.Address, seed string, participant types.Address) (*staking.Addresses, error) {
	var out staking.Addresses
	params := rpc.DeriveParam{Authority: authority, Seed: seed, Participant: participant}
	if err := c.CallContext(ctx, "staking_deriveAddresses", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Receipt returns the receipt of a committed instruction.
func (c *Client) Receipt(ctx context.Context, id types.Hash) (*engine.Receipt, error) {
	var out engine.Receipt
	if err := c.CallContext(ctx, "staking_getReceipt", rpc.ReceiptParam{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenAccount returns the token account at addr.
func (c *Client) TokenAccount(ctx context.Context, addr types.Address) (*token.Account, error) {
	var out token.Account
	if err := c.CallContext(ctx, "token_getAccount", rpc.AddressParam{Address: addr}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance returns owner's associated balance of mint. A zero mint selects
// the node's default mint.
func (c *Client) Balance(ctx context.Context, owner, mint types.Address) (*rpc.BalanceResult, error) {
	var out rpc.BalanceResult
	if err := c.CallContext(ctx, "token_getBalance", rpc.BalanceParam{Owner: owner, Mint: mint}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NodeInfo returns the node's program, network and oracle time.
func (c *Client) NodeInfo(ctx context.Context) (*rpc.NodeInfoResult, error) {
	var out rpc.NodeInfoResult
	if err := c.CallContext(ctx, "node_getInfo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
