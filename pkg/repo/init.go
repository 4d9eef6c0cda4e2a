package repo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/odvcencio/refgraph/pkg/config"
	"github.com/odvcencio/refgraph/pkg/gitodb"
	"github.com/odvcencio/refgraph/pkg/object"
	"github.com/odvcencio/refgraph/pkg/refs"
)

var (
	// ErrRepositoryExists is returned by Init when path already holds a
	// repository.
	ErrRepositoryExists = errors.New("repository already exists")
	// ErrNotRepository is returned by Open when no repository encloses path.
	ErrNotRepository = errors.New("not a git repository (or any parent up to /)")
	// ErrResolverRequired is returned for SHA-256 repositories opened
	// without WithResolver.
	ErrResolverRequired = errors.New("object format needs an external object resolver")
)

const gitDirName = ".git"

// Init creates a repository at path: path/.git, or path itself when the
// configuration says bare. SHA-1 repositories are laid out by go-git;
// SHA-256 ones get the bare ref layout and must supply WithResolver.
func Init(path string, opts ...Option) (*Repository, error) {
	o := collect(opts)
	cfg := config.Default()
	if o.cfg != nil {
		cfg = *o.cfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := refs.ValidateName(refs.BranchName(cfg.Init.DefaultBranch)); err != nil {
		return nil, fmt.Errorf("init: default branch: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	gitDir, workDir := filepath.Join(abs, gitDirName), abs
	if cfg.Core.Bare {
		gitDir, workDir = abs, ""
	}
	if looksLikeGitDir(gitDir) {
		return nil, fmt.Errorf("init: %w at %s", ErrRepositoryExists, gitDir)
	}

	format := cfg.ObjectFormat()
	if format == object.SHA1 {
		_, err := gitlib.PlainInitWithOptions(abs, &gitlib.PlainInitOptions{
			InitOptions: gitlib.InitOptions{
				DefaultBranch: plumbing.NewBranchReferenceName(cfg.Init.DefaultBranch),
			},
			Bare: cfg.Core.Bare,
		})
		if err != nil {
			if errors.Is(err, gitlib.ErrRepositoryAlreadyExists) {
				return nil, fmt.Errorf("init: %w at %s", ErrRepositoryExists, gitDir)
			}
			return nil, fmt.Errorf("init: %w", err)
		}
	} else {
		if o.resolver == nil {
			return nil, fmt.Errorf("init: %s: %w", format, ErrResolverRequired)
		}
		if err := initLayout(gitDir, cfg.Init.DefaultBranch); err != nil {
			return nil, err
		}
	}

	if err := config.Save(gitDir, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return open(gitDir, workDir, cfg, o)
}

// initLayout creates the directories and HEAD of an empty repository.
func initLayout(gitDir, defaultBranch string) error {
	dirs := []string{
		filepath.Join(gitDir, "objects"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}
	head := "ref: " + string(refs.BranchName(defaultBranch)) + "\n"
	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte(head), 0o644); err != nil {
		return fmt.Errorf("init: write HEAD: %w", err)
	}
	return nil
}

// Open searches upward from path for a repository and opens it. path may
// be a working tree (or a directory inside one) or a bare git directory.
func Open(path string, opts ...Option) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		if dotGit := filepath.Join(cur, gitDirName); looksLikeGitDir(dotGit) {
			return openAt(dotGit, cur, opts)
		}
		if looksLikeGitDir(cur) {
			if filepath.Base(cur) == gitDirName {
				return openAt(cur, filepath.Dir(cur), opts)
			}
			return openAt(cur, "", opts)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w", abs, ErrNotRepository)
		}
		cur = parent
	}
}

func openAt(gitDir, workDir string, opts []Option) (*Repository, error) {
	o := collect(opts)
	var cfg config.Config
	if o.cfg != nil {
		cfg = *o.cfg
	} else {
		loaded, err := config.Load(gitDir)
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		cfg = loaded
	}
	switch {
	case workDir == "":
		cfg.Core.Bare = true
	case cfg.Core.Bare:
		workDir = ""
	}
	return open(gitDir, workDir, cfg, o)
}

func open(gitDir, workDir string, cfg config.Config, o options) (*Repository, error) {
	odb := o.resolver
	var closer io.Closer
	if odb == nil {
		if cfg.ObjectFormat() != object.SHA1 {
			return nil, fmt.Errorf("open: %s: %w", cfg.ObjectFormat(), ErrResolverRequired)
		}
		store, err := gitodb.Open(gitDir, gitodb.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		odb, closer = store, store
	}
	r, err := newRepository(gitDir, workDir, cfg, odb, closer, o)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("open: %w", err)
	}
	return r, nil
}

// looksLikeGitDir reports whether dir has the HEAD file and the objects
// and refs directories every git directory carries.
func looksLikeGitDir(dir string) bool {
	if info, err := os.Stat(filepath.Join(dir, "HEAD")); err != nil || info.IsDir() {
		return false
	}
	for _, sub := range []string{"objects", "refs"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
