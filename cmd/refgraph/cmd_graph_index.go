package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGraphIndexCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph-index",
		Short: "Compute generation numbers for every commit reachable from refs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			added, err := r.UpdateGraphIndex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d commits (%d indexed)\n", added, r.GraphIndex().Len())
			return nil
		},
	}
}
