package main

import (
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"github.com/spf13/cobra"
)

func receiptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <id>",
		Short: "Show the receipt of a committed instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.HexToHash(args[0])
			if err != nil {
				return err
			}
			r, err := a.client.Receipt(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the node's program, network and oracle time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.client.NodeInfo(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}
