package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/refgraph/pkg/repo"
)

func newUpdateRefCmd(g *globalOptions) *cobra.Command {
	var (
		message      string
		deleteRef    bool
		noDeref      bool
		createReflog bool
		stdin        bool
	)

	cmd := &cobra.Command{
		Use:   "update-ref [-d] <ref> [<new>] [<old>] | --stdin",
		Short: "Update references atomically",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			o := updateOptions{
				format:      r.ObjectFormat(),
				message:     message,
				deref:       !noDeref,
				writeReflog: createReflog || r.Config().Refs.LogAllRefUpdates,
			}

			var batch updateBatch
			switch {
			case stdin:
				if len(args) > 0 {
					return fmt.Errorf("update-ref --stdin takes no arguments")
				}
				batch, err = parseUpdateStdin(cmd.InOrStdin(), o)
			case deleteRef:
				if len(args) < 1 || len(args) > 2 {
					return fmt.Errorf("update-ref -d: expected <ref> [<old>]")
				}
				err = batch.add(append([]string{"delete"}, args...), o)
			default:
				if len(args) < 2 || len(args) > 3 {
					return fmt.Errorf("update-ref: expected <ref> <new> [<old>]")
				}
				err = batch.add(append([]string{"update"}, args...), o)
			}
			if err != nil {
				return err
			}
			return applyBatch(cmd, r, batch)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "reflog message")
	cmd.Flags().BoolVarP(&deleteRef, "delete", "d", false, "delete the reference")
	cmd.Flags().BoolVar(&noDeref, "no-deref", false, "update a symbolic ref itself instead of the ref it points at")
	cmd.Flags().BoolVar(&createReflog, "create-reflog", false, "write reflog entries even when refs.log_all_ref_updates is off")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read commands from standard input and apply them as one transaction")
	return cmd
}

func applyBatch(cmd *cobra.Command, r *repo.Repository, batch updateBatch) error {
	if len(batch.edits) == 0 {
		return nil
	}

	_, err := r.ApplyTransaction(cmd.Context(), batch.edits)
	return err
}
