package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/refgraph/pkg/config"
	"github.com/odvcencio/refgraph/pkg/log"
	"github.com/odvcencio/refgraph/pkg/repo"
)

func newInitCmd(g *globalOptions) *cobra.Command {
	var (
		bare          bool
		objectFormat  string
		initialBranch string
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.dir
			if len(args) > 0 {
				path = filepath.Join(g.dir, args[0])
				if filepath.IsAbs(args[0]) {
					path = args[0]
				}
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			cfg.Core.Bare = bare
			if objectFormat != "" {
				cfg.Core.ObjectFormat = objectFormat
			}
			if initialBranch != "" {
				cfg.Init.DefaultBranch = initialBranch
			}

			r, err := repo.Init(abs, repo.WithConfig(cfg), repo.WithLogger(log.Default()))
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty repository in %s%c\n", r.GitDir(), filepath.Separator)
			return nil
		},
	}

	cmd.Flags().BoolVar(&bare, "bare", false, "create a bare repository")
	cmd.Flags().StringVar(&objectFormat, "object-format", "", "object id format (sha1 only without an external resolver)")
	cmd.Flags().StringVarP(&initialBranch, "initial-branch", "b", "", "name of the branch HEAD points at")
	return cmd
}
