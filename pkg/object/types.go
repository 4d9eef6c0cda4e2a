package object

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by a Resolver when the requested commit is
// not present in the object database.
var ErrObjectNotFound = errors.New("object not found")

// CommitNode is the read-only view of a commit needed for graph traversal.
type CommitNode struct {
	ID      Hash
	Parents []Hash // in commit order
	// Generation is an upper bound on the longest path to a root commit,
	// taken from a precomputed graph index. Zero means unknown.
	Generation uint32
}

// Resolver is the object database capability consumed by graph traversal.
// Implementations must be safe for concurrent reads.
type Resolver interface {
	// Resolve returns the commit node for id, or an error wrapping
	// ErrObjectNotFound.
	Resolve(ctx context.Context, id Hash) (CommitNode, error)
	// Exists reports whether an object with this id is stored.
	Exists(ctx context.Context, id Hash) (bool, error)
}
