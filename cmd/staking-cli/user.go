package main

import (
	"github.com/Klingon-tech/klingnet-staking/internal/engine"
	"github.com/Klingon-tech/klingnet-staking/internal/staking"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"github.com/spf13/cobra"
)

func userCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage your user record in a pool"}

	var createRef poolRef
	create := &cobra.Command{
		Use:   "create",
		Short: "Create your user record in a pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := createRef.resolve(cmd, a)
			if err != nil {
				return err
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), engine.KindCreateUser, staking.PoolParams{Pool: pool})
		},
	}
	createRef.register(create)

	var (
		showRef poolRef
		owner   string
	)
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a user record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := showRef.resolve(cmd, a)
			if err != nil {
				return err
			}
			who, err := a.selfAddress()
			if owner != "" {
				who, err = a.resolveAddress(owner)
			}
			if err != nil {
				return err
			}
			user, err := a.client.User(cmd.Context(), pool, who)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
	showRef.register(show)
	show.Flags().StringVar(&owner, "owner", "", "user authority address or key name (default --key)")

	cmd.AddCommand(create, show)
	return cmd
}

func stakeCmd(a *app) *cobra.Command {
	var (
		ref    poolRef
		tier   string
		source string
	)
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Stake the tier's fixed amount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := ref.resolve(cmd, a)
			if err != nil {
				return err
			}
			idx, err := staking.ParseTierIndex(tier)
			if err != nil {
				return err
			}
			params := staking.StakeParams{Pool: pool, Tier: idx}
			if source != "" {
				src, err := types.ParseAddress(source)
				if err != nil {
					return err
				}
				params.Source = &src
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), engine.KindStake, params)
		},
	}
	ref.register(cmd)
	cmd.Flags().StringVar(&tier, "tier", "", "tier index (0, 1 or 2)")
	cmd.Flags().StringVar(&source, "source", "", "token account to stake from (default your associated account)")
	return cmd
}

func claimCmd(a *app) *cobra.Command {
	var (
		ref poolRef
		to  string
	)
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim accrued reward across all tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := ref.resolve(cmd, a)
			if err != nil {
				return err
			}
			params := staking.ClaimParams{Pool: pool}
			if to != "" {
				dest, err := a.destinationAccount(cmd, pool, to)
				if err != nil {
					return err
				}
				params.Destination = &dest
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), engine.KindClaim, params)
		},
	}
	ref.register(cmd)
	cmd.Flags().StringVar(&to, "to", "", "destination token account or owner (default your associated account)")
	return cmd
}

func unstakeCmd(a *app) *cobra.Command {
	var (
		ref  poolRef
		tier string
		to   string
	)
	cmd := &cobra.Command{
		Use:   "unstake",
		Short: "Return a tier's principal after its lock has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := ref.resolve(cmd, a)
			if err != nil {
				return err
			}
			idx, err := staking.ParseTierIndex(tier)
			if err != nil {
				return err
			}
			params := staking.UnstakeParams{Pool: pool, Tier: idx}
			if to != "" {
				dest, err := a.destinationAccount(cmd, pool, to)
				if err != nil {
					return err
				}
				params.Destination = &dest
			}
			return a.submitAs(cmd.Context(), cmd.OutOrStdout(), engine.KindUnstake, params)
		},
	}
	ref.register(cmd)
	cmd.Flags().StringVar(&tier, "tier", "", "tier index (0, 1 or 2)")
	cmd.Flags().StringVar(&to, "to", "", "destination token account or owner (default your associated account)")
	return cmd
}
