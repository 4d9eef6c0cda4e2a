package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/refgraph/pkg/refs"
)

func newSymbolicRefCmd(g *globalOptions) *cobra.Command {
	var (
		deleteRef bool
		short     bool
		message   string
	)

	cmd := &cobra.Command{
		Use:   "symbolic-ref <name> [<target>]",
		Short: "Read, modify or delete a symbolic reference",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			name := refs.Name(args[0])

			if deleteRef {
				if len(args) != 1 {
					return fmt.Errorf("symbolic-ref --delete takes exactly one name")
				}
				ref, err := r.FindReference(name)
				if err != nil {
					return err
				}
				if !ref.IsSymbolic() {
					return fmt.Errorf("cannot delete %s: not a symbolic ref", name)
				}
				_, err = r.ApplyTransaction(cmd.Context(), []refs.Edit{{
					Name:         name,
					Expected:     refs.ExpectSymbolic{Name: ref.Target.(refs.Symbolic).Name},
					DeleteReflog: true,
				}})
				return err
			}

			if len(args) == 2 {
				_, err := r.ApplyTransaction(cmd.Context(), []refs.Edit{{
					Name:        name,
					New:         refs.Symbolic{Name: refs.Name(args[1])},
					Message:     message,
					WriteReflog: message != "" || r.Config().Refs.LogAllRefUpdates,
				}})
				return err
			}

			ref, err := r.FindReference(name)
			if err != nil {
				return err
			}
			sym, ok := ref.Target.(refs.Symbolic)
			if !ok {
				return fmt.Errorf("ref %s is not a symbolic ref", name)
			}
			out := string(sym.Name)
			if short {
				out = sym.Name.Short()
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&deleteRef, "delete", "d", false, "delete the symbolic ref")
	cmd.Flags().BoolVar(&short, "short", false, "shorten the printed target")
	cmd.Flags().StringVarP(&message, "message", "m", "", "reflog message")
	return cmd
}
