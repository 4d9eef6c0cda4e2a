package graph

import (
	"context"
	"errors"
	"io"

	"github.com/odvcencio/refgraph/pkg/object"
)

// DefaultMaxSteps bounds how many commits one traversal may dequeue.
const DefaultMaxSteps = 1_000_000

// ErrStopWalk can be returned by a ForEach callback to end the walk early
// without an error.
var ErrStopWalk = errors.New("stop walk")

// State is the lifecycle position of a Walker.
type State int

const (
	StateIdle State = iota
	StateExpanding
	// StatePruned: the frontier ran dry after the generation cut-off
	// skipped at least one commit.
	StatePruned
	// StateExhausted: every reachable commit was emitted.
	StateExhausted
	// StateNodeNotFound: a required commit could not be resolved.
	StateNodeNotFound
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExpanding:
		return "expanding"
	case StatePruned:
		return "pruned"
	case StateExhausted:
		return "exhausted"
	case StateNodeNotFound:
		return "node-not-found"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// WalkOption configures a Walker.
type WalkOption func(*Walker)

// MinGeneration stops expansion below gen: commits with a known generation
// lower than gen are neither emitted nor expanded. Zero disables the
// cut-off.
func MinGeneration(gen uint32) WalkOption {
	return func(w *Walker) { w.minGeneration = gen }
}

// MaxSteps overrides DefaultMaxSteps.
func MaxSteps(n int) WalkOption {
	return func(w *Walker) {
		if n > 0 {
			w.maxSteps = n
		}
	}
}

// Walker lazily emits the ancestors of its start commits, starts included,
// highest generation first. Each commit is emitted once. A Walker is not
// safe for concurrent use and cannot be restarted.
type Walker struct {
	ctx      context.Context
	resolver object.Resolver
	boundary object.ShallowBoundary

	starts        []object.Hash
	minGeneration uint32
	maxSteps      int

	queue  frontier
	seen   map[object.Hash]struct{}
	steps  int
	pruned bool
	state  State
	err    error
}

// NewWalker prepares a walk from starts. Nothing is resolved until the
// first call to Next.
func NewWalker(ctx context.Context, resolver object.Resolver, boundary object.ShallowBoundary, starts []object.Hash, opts ...WalkOption) *Walker {
	w := &Walker{
		ctx:      ctx,
		resolver: resolver,
		boundary: boundary,
		starts:   append([]object.Hash(nil), starts...),
		maxSteps: DefaultMaxSteps,
		seen:     make(map[object.Hash]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns where the walk is in its lifecycle.
func (w *Walker) State() State { return w.state }

// Steps returns the number of commits dequeued so far.
func (w *Walker) Steps() int { return w.steps }

// Next returns the next commit. It returns io.EOF once the walk is
// complete; any other error is fatal and is returned again by later calls.
func (w *Walker) Next() (object.CommitNode, error) {
	switch w.state {
	case StateIdle:
		w.state = StateExpanding
		for _, id := range w.starts {
			if id == "" {
				return w.fail(StateDone, ErrInvalidInput)
			}
			if err := w.enqueue(id); err != nil {
				return w.fail(stateFor(err), err)
			}
		}
	case StateExpanding:
	case StatePruned, StateExhausted:
		return object.CommitNode{}, io.EOF
	default:
		if w.err != nil {
			return object.CommitNode{}, w.err
		}
		return object.CommitNode{}, io.EOF
	}

	if w.queue.len() == 0 {
		w.finish()
		return object.CommitNode{}, io.EOF
	}
	if err := w.ctx.Err(); err != nil {
		return w.fail(StateDone, contextError(err))
	}
	w.steps++
	if w.steps > w.maxSteps {
		return w.fail(StateDone, traversalLimitError(w.maxSteps))
	}

	node := w.queue.pop()
	for _, p := range node.Parents {
		if p == "" {
			continue
		}
		if err := w.enqueue(p); err != nil {
			return w.fail(stateFor(err), err)
		}
	}
	return node, nil
}

// ForEach calls fn for every remaining commit. Returning ErrStopWalk from
// fn ends the walk with a nil error. The walker is Done afterwards.
func (w *Walker) ForEach(fn func(object.CommitNode) error) error {
	defer w.Close()
	for {
		node, err := w.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(node); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
	}
}

// Close ends the walk and drops its state.
func (w *Walker) Close() {
	w.state = StateDone
	w.queue = frontier{}
	w.seen = nil
}

func (w *Walker) enqueue(id object.Hash) error {
	if _, ok := w.seen[id]; ok {
		return nil
	}
	w.seen[id] = struct{}{}
	node, err := resolveNode(w.ctx, w.resolver, w.boundary, id)
	if err != nil {
		return err
	}
	if w.minGeneration > 0 && node.Generation > 0 && node.Generation < w.minGeneration {
		w.pruned = true
		return nil
	}
	w.queue.push(node)
	return nil
}

func (w *Walker) finish() {
	if w.pruned {
		w.state = StatePruned
	} else {
		w.state = StateExhausted
	}
}

func (w *Walker) fail(state State, err error) (object.CommitNode, error) {
	w.state = state
	w.err = err
	w.queue = frontier{}
	return object.CommitNode{}, err
}

func stateFor(err error) State {
	var walkErr *WalkError
	if errors.As(err, &walkErr) {
		return StateNodeNotFound
	}
	return StateDone
}
