package main

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-staking/config"
	"github.com/Klingon-tech/klingnet-staking/internal/engine"
	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/internal/token"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"github.com/spf13/cobra"
)

// poolRef selects a pool either by address or by (authority, seed).
type poolRef struct {
	pool      string
	seed      string
	authority string
}

func (r *poolRef) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.pool, "pool", "", "pool address")
	cmd.Flags().StringVar(&r.seed, "seed", "", "pool seed (with --authority, default --key)")
	cmd.Flags().StringVar(&r.authority, "authority", "", "pool authority address or key name")
}

// resolve returns the pool address.
func (r *poolRef) resolve(cmd *cobra.Command, a *app) (types.Address, error) {
	if r.pool != "" {
		return types.ParseAddress(r.pool)
	}
	if r.seed == "" {
		return types.Address{}, fmt.Errorf("--pool or --seed is required")
	}
	authority, err := r.authorityAddress(a)
	if err != nil {
		return types.Address{}, err
	}
	addrs, err := a.client.DeriveAddresses(cmd.Context(), authority, r.seed, types.Address{})
	if err != nil {
		return types.Address{}, err
	}
	return addrs.Pool, nil
}

func (r *poolRef) authorityAddress(a *app) (types.Address, error) {
	if r.authority != "" {
		return a.resolveAddress(r.authority)
	}
	return a.selfAddress()
}

func poolCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "pool", Short: "Administer and inspect pools"}
	cmd.AddCommand(
		poolInitCmd(a),
		poolToggleCmd(a, "pause", "Stop staking and claiming", engine.KindPause),
		poolToggleCmd(a, "unpause", "Resume a paused pool", engine.KindUnpause),
		poolToggleCmd(a, "close", "Close the pool to new stakes", engine.KindClose),
		poolToggleCmd(a, "open", "Reopen a closed pool", engine.KindOpen),
		poolFundCmd(a),
		poolWithdrawCmd(a),
		poolFreeCmd(a),
		poolShowCmd(a),
		poolListCmd(a),
		poolUsersCmd(a),
		poolAddressesCmd(a),
	)
	return cmd
}

func poolInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init <pool.yaml>",
		Short: "Create a pool from a YAML definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := config.LoadPoolFile(args[0])
			if err != nil {
				return err
			}
			info, err := a.client.NodeInfo(cmd.Context())
			if err != nil {
				return err
			}
			authority, err := a.selfAddress()
			if err != nil {
				return err
			}
			params, err := pf.InitializeParams(info.Mint, authority)
			if err != nil {
				return err
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), engine.KindInitialize, params)
		},
	}
}

func poolToggleCmd(a *app, use, short string, kind engine.Kind) *cobra.Command {
	var ref poolRef
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := ref.resolve(cmd, a)
			if err != nil {
				return err
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), kind, staking.PoolParams{Pool: pool})
		},
	}
	ref.register(cmd)
	return cmd
}

func poolFundCmd(a *app) *cobra.Command {
	var (
		ref    poolRef
		amount uint64
	)
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Transfer reward tokens into the pool's reward vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if amount == 0 {
				return fmt.Errorf("--amount must be positive")
			}
			pool, err := ref.resolve(cmd, a)
			if err != nil {
				return err
			}
			p, err := a.client.Pool(cmd.Context(), pool)
			if err != nil {
				return err
			}
			self, err := a.selfAddress()
			if err != nil {
				return err
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), engine.KindTokenTransfer, engine.TokenTransferParams{
				Source:      token.AssociatedAddress(self, p.Mint),
				Destination: p.RewardVault,
				Amount:      amount,
			})
		},
	}
	ref.register(cmd)
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount in base units")
	return cmd
}

func poolWithdrawCmd(a *app) *cobra.Command {
	var (
		ref poolRef
		to  string
	)
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw reward not committed to stakers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := ref.resolve(cmd, a)
			if err != nil {
				return err
			}
			dest, err := a.destinationAccount(cmd, pool, to)
			if err != nil {
				return err
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), engine.KindWithdrawExtra, staking.WithdrawExtraParams{
				Pool:        pool,
				Destination: dest,
			})
		},
	}
	ref.register(cmd)
	cmd.Flags().StringVar(&to, "to", "", "destination token account, or owner address/key (default --key)")
	return cmd
}

// destinationAccount returns the token account named by to. An owner
// address or key name maps to its associated account for the pool's mint.
func (a *app) destinationAccount(cmd *cobra.Command, pool types.Address, to string) (types.Address, error) {
	p, err := a.client.Pool(cmd.Context(), pool)
	if err != nil {
		return types.Address{}, err
	}
	var owner types.Address
	if to == "" {
		owner, err = a.selfAddress()
	} else {
		owner, err = a.resolveAddress(to)
	}
	if err != nil {
		return types.Address{}, err
	}
	if acct, err := a.client.TokenAccount(cmd.Context(), owner); err == nil && acct.Mint == p.Mint {
		return owner, nil
	}
	return token.AssociatedAddress(owner, p.Mint), nil
}

func poolFreeCmd(a *app) *cobra.Command {
	var (
		ref      poolRef
		receiver string
	)
	cmd := &cobra.Command{
		Use:   "free",
		Short: "Reclaim every settled user record, then the pool itself",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := ref.resolve(cmd, a)
			if err != nil {
				return err
			}
			recv, err := a.selfAddress()
			if receiver != "" {
				recv, err = a.resolveAddress(receiver)
			}
			if err != nil {
				return err
			}

			users, err := a.client.ListUsers(cmd.Context(), pool)
			if err != nil {
				return err
			}
			key, err := a.signer()
			if err != nil {
				return err
			}
			defer key.Zero()

			out := cmd.OutOrStdout()
			for _, u := range users {
				if !u.Settled() {
					return fmt.Errorf("user %s still has unsettled stakes", u.Address)
				}
				if _, err := a.submit(cmd.Context(), out, key, engine.KindFreeUser, staking.FreeUserParams{
					Pool:     pool,
					User:     u.Address,
					Receiver: recv,
				}); err != nil {
					return err
				}
			}
			_, err = a.submit(cmd.Context(), out, key, engine.KindFreePool, staking.FreePoolParams{
				Pool:     pool,
				Receiver: recv,
			})
			return err
		},
	}
	ref.register(cmd)
	cmd.Flags().StringVar(&receiver, "receiver", "", "address credited with reclaimed records (default --key)")
	return cmd
}

func poolShowCmd(a *app) *cobra.Command {
	var ref poolRef
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a pool with its vault balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := ref.resolve(cmd, a)
			if err != nil {
				return err
			}
			p, err := a.client.Pool(cmd.Context(), pool)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	ref.register(cmd)
	return cmd
}

func poolListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pools, err := a.client.ListPools(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pools)
		},
	}
}

func poolUsersCmd(a *app) *cobra.Command {
	var ref poolRef
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List a pool's user records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := ref.resolve(cmd, a)
			if err != nil {
				return err
			}
			users, err := a.client.ListUsers(cmd.Context(), pool)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), users)
		},
	}
	ref.register(cmd)
	return cmd
}

func poolAddressesCmd(a *app) *cobra.Command {
	var (
		ref         poolRef
		participant string
	)
	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Derive the pool, vault, reward vault and user addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ref.seed == "" {
				return fmt.Errorf("--seed is required")
			}
			authority, err := ref.authorityAddress(a)
			if err != nil {
				return err
			}
			var part types.Address
			if participant != "" {
				if part, err = a.resolveAddress(participant); err != nil {
					return err
				}
			}
			addrs, err := a.client.DeriveAddresses(cmd.Context(), authority, ref.seed, part)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), addrs)
		},
	}
	ref.register(cmd)
	cmd.Flags().StringVar(&participant, "participant", "", "include this participant's user record address")
	return cmd
}
