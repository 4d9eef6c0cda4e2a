package repo

import (
	"context"
	"errors"

	"github.com/odvcencio/refgraph/pkg/graph"
	"github.com/odvcencio/refgraph/pkg/graphindex"
	"github.com/odvcencio/refgraph/pkg/object"
	"github.com/odvcencio/refgraph/pkg/refs"
)

// ErrorKind classifies failures for callers that branch on the cause
// rather than the message.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidInput
	KindNotFound
	KindPreconditionFailed
	KindObjectNotFound
	KindGraphInconsistency
	KindIOFailure
	KindNoCommonAncestor
	KindCancelled
	KindTimedOut
)

var kindNames = [...]string{
	KindNone:               "none",
	KindInvalidInput:       "invalid-input",
	KindNotFound:           "not-found",
	KindPreconditionFailed: "precondition-failed",
	KindObjectNotFound:     "object-not-found",
	KindGraphInconsistency: "graph-inconsistency",
	KindIOFailure:          "io-failure",
	KindNoCommonAncestor:   "no-common-ancestor",
	KindCancelled:          "cancelled",
	KindTimedOut:           "timed-out",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// KindOf maps err onto the error taxonomy. Errors that carry no known
// sentinel are I/O failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, graph.ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, graph.ErrTimedOut), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, graph.ErrTraversalLimit), errors.Is(err, refs.ErrLockTimeout):
		return KindTimedOut
	case errors.Is(err, object.ErrInvalidHash), errors.Is(err, refs.ErrInvalidName),
		errors.Is(err, refs.ErrInvalidEdit), errors.Is(err, graph.ErrInvalidInput),
		errors.Is(err, ErrResolverRequired):
		return KindInvalidInput
	case errors.Is(err, refs.ErrPreconditionFailed), errors.Is(err, refs.ErrNameConflict),
		errors.Is(err, ErrRepositoryExists):
		return KindPreconditionFailed
	case errors.Is(err, refs.ErrSymrefDepth), errors.Is(err, graph.ErrGraphInconsistency),
		errors.Is(err, graphindex.ErrCycle):
		return KindGraphInconsistency
	case errors.Is(err, graph.ErrNoCommonAncestor):
		return KindNoCommonAncestor
	case isWalkError(err):
		return KindObjectNotFound
	case errors.Is(err, refs.ErrNotFound), errors.Is(err, object.ErrObjectNotFound),
		errors.Is(err, ErrNotRepository):
		return KindNotFound
	default:
		return KindIOFailure
	}
}

func isWalkError(err error) bool {
	var walkErr *graph.WalkError
	return errors.As(err, &walkErr)
}
