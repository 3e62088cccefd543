package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the metrics cache",
}

var cacheBumpCmd = &cobra.Command{
	Use:   "bump",
	Short: "Invalidate every cached metric by moving to a new cache version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackend(cmd, func(b *backend) error {
			ver, err := b.cache.Bump(cmd.Context())
			if err != nil {
				return eris.Wrap(err, "cache bump")
			}
			if ver == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "cache disabled, nothing to bump")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache version %d\n", ver)
			return nil
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheBumpCmd)
}
