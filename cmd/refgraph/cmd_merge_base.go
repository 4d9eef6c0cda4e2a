package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/refgraph/pkg/graph"
	"github.com/odvcencio/refgraph/pkg/object"
	"github.com/odvcencio/refgraph/pkg/repo"
)

func newMergeBaseCmd(g *globalOptions) *cobra.Command {
	var (
		all        bool
		octopus    bool
		isAncestor bool
		batch      bool
		jobs       int
	)

	cmd := &cobra.Command{
		Use:   "merge-base [--all | --octopus | --is-ancestor] <commit> <commit>... | --batch",
		Short: "Find common ancestors of commits",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if batch {
				if len(args) > 0 {
					return fmt.Errorf("merge-base --batch takes no arguments")
				}
				return mergeBaseBatch(ctx, r, cmd.InOrStdin(), out, jobs, all)
			}

			ids := make([]object.Hash, len(args))
			for i, a := range args {
				if ids[i], err = r.ResolveRevision(a); err != nil {
					return err
				}
			}

			switch {
			case isAncestor:
				if len(ids) != 2 {
					return fmt.Errorf("merge-base --is-ancestor takes exactly two commits")
				}
				ok, err := r.IsAncestor(ctx, ids[0], ids[1])
				if err != nil {
					return err
				}
				if !ok {
					return exitError{code: 1}
				}
				return nil

			case octopus:
				base, err := r.MergeBaseOctopus(ctx, ids)
				if errors.Is(err, graph.ErrNoCommonAncestor) {
					return exitError{code: 1}
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(out, base)
				return nil
			}

			if len(ids) < 2 {
				return fmt.Errorf("merge-base needs at least two commits")
			}
			var bases []object.Hash
			if len(ids) == 2 {
				bases, err = r.MergeBases(ctx, ids[0], ids[1])
			} else {
				bases, err = r.MergeBasesMany(ctx, ids[0], ids[1:])
			}
			if err != nil {
				return err
			}
			if len(bases) == 0 {
				return exitError{code: 1}
			}
			if !all {
				bases = bases[:1]
			}
			for _, b := range bases {
				fmt.Fprintln(out, b)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "print every best common ancestor")
	cmd.Flags().BoolVar(&octopus, "octopus", false, "compute the base of all commits for an n-way merge")
	cmd.Flags().BoolVar(&isAncestor, "is-ancestor", false, "exit 0 if the first commit is an ancestor of the second, 1 otherwise")
	cmd.Flags().BoolVar(&batch, "batch", false, "read \"<commit> <commit>\" pairs from standard input")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "concurrent queries in --batch mode")
	return cmd
}

// mergeBaseBatch answers one query per input line, printing results in
// input order. A line with no common ancestor prints an empty line; a line
// that fails prints "error: <message>" and does not stop the batch.
func mergeBaseBatch(ctx context.Context, r *repo.Repository, in io.Reader, out io.Writer, jobs int, all bool) error {
	var pairs [][]string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		pairs = append(pairs, strings.Fields(text))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	results := make([]string, len(pairs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, pair := range pairs {
		g.Go(func() error {
			line, err := mergeBaseLine(ctx, r, pair, all)
			if err != nil {
				if k := repo.KindOf(err); k == repo.KindCancelled || k == repo.KindTimedOut {
					return err
				}
				line = "error: " + err.Error()
			}
			results[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	for _, line := range results {
		fmt.Fprintln(w, line)
	}
	return w.Flush()
}

func mergeBaseLine(ctx context.Context, r *repo.Repository, pair []string, all bool) (string, error) {
	if len(pair) != 2 {
		return "", fmt.Errorf("expected two commits, got %d fields", len(pair))
	}
	a, err := r.ResolveRevision(pair[0])
	if err != nil {
		return "", err
	}
	b, err := r.ResolveRevision(pair[1])
	if err != nil {
		return "", err
	}
	bases, err := r.MergeBases(ctx, a, b)
	if err != nil {
		return "", err
	}
	if len(bases) == 0 {
		return "", nil
	}
	if !all {
		bases = bases[:1]
	}
	parts := make([]string, len(bases))
	for i, id := range bases {
		parts[i] = string(id)
	}
	return strings.Join(parts, " "), nil
}
