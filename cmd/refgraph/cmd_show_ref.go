package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/refgraph/pkg/refs"
)

func newShowRefCmd(g *globalOptions) *cobra.Command {
	var (
		heads, tags, head, symbolic bool
	)

	cmd := &cobra.Command{
		Use:   "show-ref [pattern...]",
		Short: "List references and the objects they point at",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			prefix := "refs/"
			switch {
			case heads && !tags:
				prefix = refs.BranchPrefix
			case tags && !heads:
				prefix = refs.TagPrefix
			}
			all, err := r.ListReferences(prefix)
			if err != nil {
				return err
			}
			if head {
				h, err := r.HeadRef()
				if err != nil && !errors.Is(err, refs.ErrNotFound) {
					return err
				}
				if err == nil {
					all = append([]refs.Reference{h}, all...)
				}
			}

			out := cmd.OutOrStdout()
			shown := 0
			for _, ref := range all {
				if !matchesRefPattern(ref.Name, args) {
					continue
				}
				if symbolic && ref.IsSymbolic() {
					fmt.Fprintf(out, "%s %s\n", ref.Target, ref.Name)
					shown++
					continue
				}
				id, err := r.Refs().Peel(ref.Name)
				if err != nil {
					if errors.Is(err, refs.ErrNotFound) {
						continue // dangling symref or unborn HEAD
					}
					return err
				}
				fmt.Fprintf(out, "%s %s\n", id, ref.Name)
				shown++
			}
			if shown == 0 && len(args) > 0 {
				return exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&heads, "heads", false, "only show refs under refs/heads")
	cmd.Flags().BoolVar(&tags, "tags", false, "only show refs under refs/tags")
	cmd.Flags().BoolVar(&head, "head", false, "show HEAD as well")
	cmd.Flags().BoolVar(&symbolic, "symbolic", false, "print symbolic targets instead of peeling them")
	return cmd
}

// matchesRefPattern matches patterns against whole trailing path
// components, so "main" selects refs/heads/main but not refs/heads/domain.
func matchesRefPattern(name refs.Name, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	s := string(name)
	for _, p := range patterns {
		if s == p || strings.HasSuffix(s, "/"+p) {
			return true
		}
	}
	return false
}
