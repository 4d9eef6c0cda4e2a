package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/odvcencio/refgraph/pkg/log"
	"github.com/odvcencio/refgraph/pkg/repo"
)

// exitError ends the process with code and no message, the way
// "merge-base --is-ancestor" reports a negative answer.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type globalOptions struct {
	dir      string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "refgraph:", err)
		os.Exit(128)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "refgraph",
		Short:         "Transactional git references and commit-graph queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.dir, "directory", "C", ".", "run as if started in `path`")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log.level from the repository config")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(g))
	root.AddCommand(newShowRefCmd(g))
	root.AddCommand(newSymbolicRefCmd(g))
	root.AddCommand(newUpdateRefCmd(g))
	root.AddCommand(newBranchCmd(g))
	root.AddCommand(newTagCmd(g))
	root.AddCommand(newReflogCmd(g))
	root.AddCommand(newMergeBaseCmd(g))
	root.AddCommand(newGraphIndexCmd(g))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "refgraph 0.1.0-dev")
		},
	}
}

// openRepo opens the repository enclosing g.dir and applies its logging
// settings to the process logger.
func (g *globalOptions) openRepo() (*repo.Repository, error) {
	logger := log.Default()
	r, err := repo.Open(g.dir, repo.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	cfg := r.Config().Log
	level := cfg.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	if err := log.Configure(logger, cfg.Format, level); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}
