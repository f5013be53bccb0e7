package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/AddressImport/internal/core"
)

func newDedupKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup-key TEXT...",
		Short: "Print the duplicate key of each address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", core.DedupKey(a), a)
			}
			return nil
		},
	}
}
