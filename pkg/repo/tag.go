package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/refgraph/pkg/object"
	"github.com/odvcencio/refgraph/pkg/refs"
)

// CreateTag creates or, with force, moves a lightweight tag under
// refs/tags/.
func (r *Repository) CreateTag(ctx context.Context, name string, target object.Hash, force bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("create tag: %w: tag name is required", refs.ErrInvalidName)
	}
	if _, err := r.CreateReference(ctx, refs.TagName(name), refs.Direct{ID: target}, force); err != nil {
		if errors.Is(err, refs.ErrPreconditionFailed) {
			return fmt.Errorf("create tag: tag %q already exists: %w", name, err)
		}
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// DeleteTag removes a tag ref from refs/tags/.
func (r *Repository) DeleteTag(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	_, err := r.refs.Apply(ctx, []refs.Edit{{
		Name:         refs.TagName(name),
		Expected:     refs.ExpectExisting{},
		DeleteReflog: true,
	}})
	if err != nil {
		if errors.Is(err, refs.ErrPreconditionFailed) {
			return fmt.Errorf("delete tag: tag %q does not exist: %w", name, refs.ErrNotFound)
		}
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// ListTags returns the tag names under refs/tags/, sorted.
func (r *Repository) ListTags() ([]string, error) {
	names, err := r.refs.Names(refs.TagPrefix)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n.Short())
	}
	return out, nil
}
