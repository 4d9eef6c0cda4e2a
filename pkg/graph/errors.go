package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/refgraph/pkg/object"
)

var (
	// ErrInvalidInput is returned for empty or malformed arguments. Nothing
	// is traversed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoCommonAncestor is returned when a single merge base was asked for
	// and the histories share none.
	ErrNoCommonAncestor = errors.New("no common ancestor")
	// ErrGraphInconsistency is returned when the resolver reports a graph
	// that cannot be right, such as a commit stored under another id.
	ErrGraphInconsistency = errors.New("commit graph inconsistency")
	// ErrCancelled is returned when the context is cancelled mid-walk.
	ErrCancelled = errors.New("traversal cancelled")
	// ErrTimedOut is returned when the context deadline passes mid-walk.
	ErrTimedOut = errors.New("traversal timed out")
	// ErrTraversalLimit is returned when a walk dequeues more commits than
	// its configured maximum.
	ErrTraversalLimit = errors.New("traversal exceeded maximum steps")
)

// WalkError reports a commit that a traversal needed but could not
// resolve. It wraps object.ErrObjectNotFound.
type WalkError struct {
	ID  object.Hash
	Err error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("walk: commit %s: %v", e.ID, e.Err)
}

func (e *WalkError) Unwrap() error { return e.Err }

// contextError maps a context failure onto the traversal sentinels while
// keeping the context error in the chain.
func contextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimedOut, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	default:
		return err
	}
}

func traversalLimitError(limit int) error {
	return fmt.Errorf("%w (%d)", ErrTraversalLimit, limit)
}
