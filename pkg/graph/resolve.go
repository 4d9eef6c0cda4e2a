package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/refgraph/pkg/object"
)

// resolveNode fetches id with the shallow boundary applied: boundary
// commits lose their parents, and a boundary commit the resolver does not
// have is treated as a root rather than a failure.
func resolveNode(ctx context.Context, r object.Resolver, boundary object.ShallowBoundary, id object.Hash) (object.CommitNode, error) {
	node, err := r.Resolve(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, object.ErrObjectNotFound):
			if boundary.Contains(id) {
				return object.CommitNode{ID: id}, nil
			}
			return object.CommitNode{}, &WalkError{ID: id, Err: err}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return object.CommitNode{}, contextError(err)
		default:
			return object.CommitNode{}, fmt.Errorf("resolve %s: %w", id, err)
		}
	}
	if node.ID != id {
		return object.CommitNode{}, fmt.Errorf("%w: resolving %s returned %s", ErrGraphInconsistency, id, node.ID)
	}
	if boundary.Contains(id) {
		node.Parents = nil
	}
	return node, nil
}
