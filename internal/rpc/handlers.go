package rpc

import (
	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/internal/token"
)

// ── Staking endpoints ───────────────────────────────────────────────────

func (s *Server) handleStakingSubmit(req *Request) (interface{}, *Error) {
	var params SubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Instruction == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "instruction is required"}
	}

	receipt, err := s.engine.Submit(params.Instruction)
	if err != nil {
		return nil, instructionError(err)
	}
	return receipt, nil
}

func (s *Server) handleStakingGetPool(req *Request) (interface{}, *Error) {
	var params PoolParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	pool, err := s.engine.Pool(params.Pool)
	if err != nil {
		return nil, queryError(err)
	}
	return s.poolResult(pool)
}

func (s *Server) handleStakingListPools(_ *Request) (interface{}, *Error) {
	pools, err := s.engine.ListPools()
	if err != nil {
		return nil, queryError(err)
	}
	results := make([]*PoolResult, 0, len(pools))
	for i := range pools {
		r, rpcErr := s.poolResult(&pools[i])
		if rpcErr != nil {
			return nil, rpcErr
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Server) poolResult(pool *staking.Pool) (*PoolResult, *Error) {
	vault, err := s.engine.TokenAccount(pool.Vault)
	if err != nil {
		return nil, queryError(err)
	}
	reward, err := s.engine.TokenAccount(pool.RewardVault)
	if err != nil {
		return nil, queryError(err)
	}
	return &PoolResult{
		Pool:               pool,
		VaultBalance:       vault.Amount,
		RewardVaultBalance: reward.Amount,
		Outstanding:        pool.Metrics.Outstanding(),
	}, nil
}

func (s *Server) handleStakingGetUser(req *Request) (interface{}, *Error) {
	var params UserParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	var (
		user *staking.User
		err  error
	)
	switch {
	case !params.User.IsZero():
		user, err = s.engine.UserByAddress(params.User)
	case !params.Pool.IsZero() && !params.Authority.IsZero():
		user, err = s.engine.User(params.Pool, params.Authority)
	default:
		return nil, &Error{Code: CodeInvalidParams, Message: "user, or pool and authority, are required"}
	}
	if err != nil {
		return nil, queryError(err)
	}
	return user, nil
}

func (s *Server) handleStakingListUsers(req *Request) (interface{}, *Error) {
	var params PoolParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if _, err := s.engine.Pool(params.Pool); err != nil {
		return nil, queryError(err)
	}

	users, err := s.engine.ListUsers(params.Pool)
	if err != nil {
		return nil, queryError(err)
	}
	return &UserListResult{Pool: params.Pool, Users: users}, nil
}

func (s *Server) handleStakingDeriveAddresses(req *Request) (interface{}, *Error) {
	var params DeriveParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Authority.IsZero() {
		return nil, &Error{Code: CodeInvalidParams, Message: "authority is required"}
	}
	if params.Seed == "" || len(params.Seed) > staking.MaxSeedLen {
		return nil, &Error{Code: CodeInvalidParams, Message: "seed must be 1..32 bytes"}
	}
	return s.engine.DeriveAddresses(params.Authority, params.Seed, params.Participant), nil
}

func (s *Server) handleStakingGetReceipt(req *Request) (interface{}, *Error) {
	var params ReceiptParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	receipt, err := s.engine.Receipt(params.ID)
	if err != nil {
		return nil, queryError(err)
	}
	return receipt, nil
}

// ── Token endpoints ─────────────────────────────────────────────────────

func (s *Server) handleTokenGetAccount(req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	acct, err := s.engine.TokenAccount(params.Address)
	if err != nil {
		return nil, queryError(err)
	}
	return acct, nil
}

func (s *Server) handleTokenGetBalance(req *Request) (interface{}, *Error) {
	var params BalanceParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Owner.IsZero() {
		return nil, &Error{Code: CodeInvalidParams, Message: "owner is required"}
	}
	mint := params.Mint
	if mint.IsZero() {
		mint = s.info.Mint
	}

	amount, err := s.engine.Balance(params.Owner, mint)
	if err != nil {
		return nil, queryError(err)
	}
	return &BalanceResult{
		Owner:   params.Owner,
		Mint:    mint,
		Account: token.AssociatedAddress(params.Owner, mint),
		Balance: amount,
	}, nil
}

// ── Node endpoints ──────────────────────────────────────────────────────

func (s *Server) handleNodeGetInfo(_ *Request) (interface{}, *Error) {
	return &NodeInfoResult{
		Program: s.engine.Program(),
		Network: s.info.Network,
		Mint:    s.info.Mint,
		Time:    s.engine.Now(),
		Version: s.info.Version,
	}, nil
}
