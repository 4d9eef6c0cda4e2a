package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/refgraph/pkg/refs"
)

func newReflogCmd(g *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show ref update history, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			name := refs.HEAD
			if len(args) == 1 {
				name = qualifyRef(args[0])
			}
			entries, err := r.ReadReflog(name, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, e := range entries {
				ts := e.Time.UTC().Format(time.RFC3339)
				fmt.Fprintf(out, "%s %s@{%d} %s %s\n", e.New.Short(), name.Short(), i, ts, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}

// qualifyRef expands a branch shorthand; full names and HEAD pass through.
func qualifyRef(s string) refs.Name {
	n := refs.Name(s)
	if n == refs.HEAD || refs.ValidateName(n) == nil {
		return n
	}
	return refs.BranchName(s)
}
