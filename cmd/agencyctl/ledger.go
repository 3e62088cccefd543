package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the cost ledger provider",
}

var ledgerDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Probe the schema and report which ledger tables are in use",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackend(cmd, func(b *backend) error {
			detected, err := b.detect(cmd.Context())
			if err != nil {
				return eris.Wrap(err, "ledger detect")
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "configured\t%s\n", b.configured)
			fmt.Fprintf(tw, "active\t%s\n", b.resolved)
			fmt.Fprintf(tw, "schema\t%s\n", detected)
			return tw.Flush()
		})
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerDetectCmd)
}
