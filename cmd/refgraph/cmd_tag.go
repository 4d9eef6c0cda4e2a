package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/refgraph/pkg/refs"
)

func newTagCmd(g *globalOptions) *cobra.Command {
	var deleteTag string
	var force bool
	var showHash bool

	cmd := &cobra.Command{
		Use:   "tag [name] [target]",
		Short: "List, create, or delete lightweight tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if strings.TrimSpace(deleteTag) != "" {
				if len(args) > 0 {
					return fmt.Errorf("tag --delete does not accept positional args")
				}
				return r.DeleteTag(cmd.Context(), deleteTag)
			}

			if len(args) == 0 {
				tags, err := r.ListTags()
				if err != nil {
					return err
				}
				for _, name := range tags {
					if !showHash {
						fmt.Fprintln(cmd.OutOrStdout(), name)
						continue
					}
					id, err := r.Refs().Peel(refs.TagName(name))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, name)
				}
				return nil
			}

			target := "HEAD"
			if len(args) == 2 {
				target = args[1]
			}
			id, err := r.ResolveRevision(target)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", target, err)
			}
			return r.CreateTag(cmd.Context(), args[0], id, force)
		},
	}

	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")
	cmd.Flags().BoolVar(&showHash, "show-hash", false, "show tag target hashes when listing")
	return cmd
}
