package main

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-staking/internal/engine"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"github.com/spf13/cobra"
)

func tokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Token accounts and transfers"}

	var openMint string
	open := &cobra.Command{
		Use:   "open",
		Short: "Open your associated token account for a mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mint, err := a.mintOrDefault(cmd, openMint)
			if err != nil {
				return err
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), engine.KindTokenOpen, engine.TokenOpenParams{Mint: mint})
		},
	}
	open.Flags().StringVar(&openMint, "mint", "", "mint address (default the node's mint)")

	var (
		from, to, mint string
		amount         uint64
	)
	transfer := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer tokens between accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if to == "" {
				return fmt.Errorf("--to is required")
			}
			if amount == 0 {
				return fmt.Errorf("--amount must be positive")
			}
			m, err := a.mintOrDefault(cmd, mint)
			if err != nil {
				return err
			}
			src, err := a.accountFor(cmd, from, m)
			if err != nil {
				return err
			}
			dst, err := a.accountFor(cmd, to, m)
			if err != nil {
				return err
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), engine.KindTokenTransfer, engine.TokenTransferParams{
				Source:      src,
				Destination: dst,
				Amount:      amount,
			})
		},
	}
	transfer.Flags().StringVar(&from, "from", "", "source account or owner (default --key)")
	transfer.Flags().StringVar(&to, "to", "", "destination account or owner")
	transfer.Flags().StringVar(&mint, "mint", "", "mint address (default the node's mint)")
	transfer.Flags().Uint64Var(&amount, "amount", 0, "amount in base units")

	var balMint string
	balance := &cobra.Command{
		Use:   "balance [owner]",
		Short: "Show an owner's associated balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.selfAddress()
			if len(args) == 1 {
				owner, err = a.resolveAddress(args[0])
			}
			if err != nil {
				return err
			}
			var m types.Address
			if balMint != "" {
				if m, err = types.ParseAddress(balMint); err != nil {
					return err
				}
			}
			bal, err := a.client.Balance(cmd.Context(), owner, m)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), bal)
		},
	}
	balance.Flags().StringVar(&balMint, "mint", "", "mint address (default the node's mint)")

	account := &cobra.Command{
		Use:   "account <address>",
		Short: "Show a token account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := types.ParseAddress(args[0])
			if err != nil {
				return err
			}
			acct, err := a.client.TokenAccount(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), acct)
		},
	}

	cmd.AddCommand(open, transfer, balance, account)
	return cmd
}

func (a *app) mintOrDefault(cmd *cobra.Command, s string) (types.Address, error) {
	if s != "" {
		return types.ParseAddress(s)
	}
	info, err := a.client.NodeInfo(cmd.Context())
	if err != nil {
		return types.Address{}, err
	}
	return info.Mint, nil
}

// accountFor resolves s to a token account of mint. An existing account
// address is used as is; an owner maps to its associated account.
func (a *app) accountFor(cmd *cobra.Command, s string, mint types.Address) (types.Address, error) {
	var (
		owner types.Address
		err   error
	)
	if s == "" {
		owner, err = a.selfAddress()
	} else {
		owner, err = a.resolveAddress(s)
	}
	if err != nil {
		return types.Address{}, err
	}
	if acct, err := a.client.TokenAccount(cmd.Context(), owner); err == nil && acct.Mint == mint {
		return owner, nil
	}
	bal, err := a.client.Balance(cmd.Context(), owner, mint)
	if err != nil {
		return types.Address{}, fmt.Errorf("no %s account for %s: %w", mint, owner, err)
	}
	return bal.Account, nil
}
