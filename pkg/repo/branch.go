package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/refgraph/pkg/object"
	"github.com/odvcencio/refgraph/pkg/refs"
)

// CreateBranch creates refs/heads/<name> pointing at target. Returns an
// error if the branch already exists.
func (r *Repository) CreateBranch(ctx context.Context, name string, target object.Hash) error {
	refName := refs.BranchName(name)
	_, err := r.refs.Apply(ctx, []refs.Edit{{
		Name:        refName,
		Expected:    refs.ExpectMissing{},
		New:         refs.Direct{ID: target},
		Message:     "branch: Created from " + string(target),
		WriteReflog: r.cfg.Refs.LogAllRefUpdates,
	}})
	if err != nil {
		if errors.Is(err, refs.ErrPreconditionFailed) {
			return fmt.Errorf("create branch: branch %q already exists: %w", name, err)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes refs/heads/<name> and its reflog. Returns an error
// if the branch is the current branch or does not exist.
func (r *Repository) DeleteBranch(ctx context.Context, name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}

	_, err = r.refs.Apply(ctx, []refs.Edit{{
		Name:         refs.BranchName(name),
		Expected:     refs.ExpectExisting{},
		DeleteReflog: true,
	}})
	if err != nil {
		if errors.Is(err, refs.ErrPreconditionFailed) {
			return fmt.Errorf("delete branch: branch %q does not exist: %w", name, refs.ErrNotFound)
		}
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns the branch names under refs/heads/, sorted.
func (r *Repository) ListBranches() ([]string, error) {
	names, err := r.refs.Names(refs.BranchPrefix)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if b, ok := n.Branch(); ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// CurrentBranch returns the branch HEAD points at (e.g. "ref:
// refs/heads/main" → "main"). A detached HEAD yields "".
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.refs.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	sym, ok := head.Target.(refs.Symbolic)
	if !ok {
		return "", nil
	}
	branch, _ := sym.Name.Branch()
	return branch, nil
}
