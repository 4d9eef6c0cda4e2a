package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/refgraph/pkg/log"
	"github.com/odvcencio/refgraph/pkg/metrics"
	"github.com/odvcencio/refgraph/pkg/object"
)

// Query kinds reported to metrics.
const (
	KindPairwise   = "pairwise"
	KindMany       = "many"
	KindOctopus    = "octopus"
	KindIsAncestor = "is_ancestor"
)

// MergeBaser computes merge bases over a commit graph. It keeps no state
// between calls and is safe for concurrent use as long as its resolver is.
type MergeBaser struct {
	resolver object.Resolver
	boundary object.ShallowBoundary
	format   object.Format
	maxSteps int
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
}

// Option configures a MergeBaser.
type Option func(*MergeBaser)

// WithFormat makes every input id be checked against f. Without it only
// empty ids are rejected.
func WithFormat(f object.Format) Option {
	return func(m *MergeBaser) { m.format = f }
}

// WithMaxSteps bounds the commits one query may dequeue.
func WithMaxSteps(n int) Option {
	return func(m *MergeBaser) {
		if n > 0 {
			m.maxSteps = n
		}
	}
}

// WithLogger sets the logger for query diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *MergeBaser) { m.logger = l }
}

// WithMetrics sets the collectors updated by every query.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *MergeBaser) { m.metrics = mt }
}

// NewMergeBaser returns a MergeBaser reading commits from resolver, with
// the commits in boundary treated as parentless.
func NewMergeBaser(resolver object.Resolver, boundary object.ShallowBoundary, opts ...Option) *MergeBaser {
	m := &MergeBaser{
		resolver: resolver,
		boundary: boundary,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.OrDiscard(m.logger)
	return m
}

// MergeBases returns every best common ancestor of a and b in ascending id
// order. Disjoint histories yield an empty result and no error.
func (m *MergeBaser) MergeBases(ctx context.Context, a, b object.Hash) ([]object.Hash, error) {
	bases, err := m.mergeBases(ctx, a, []object.Hash{b})
	m.metrics.ObserveMergeBase(KindPairwise, err)
	return bases, err
}

// MergeBase returns the lowest of the best common ancestors of a and b, or
// ErrNoCommonAncestor.
func (m *MergeBaser) MergeBase(ctx context.Context, a, b object.Hash) (object.Hash, error) {
	bases, err := m.mergeBases(ctx, a, []object.Hash{b})
	if err == nil && len(bases) == 0 {
		err = fmt.Errorf("merge base of %s and %s: %w", a, b, ErrNoCommonAncestor)
	}
	m.metrics.ObserveMergeBase(KindPairwise, err)
	if err != nil {
		return "", err
	}
	return bases[0], nil
}

// MergeBasesMany returns the best commits reachable from one and from every
// commit in others, in ascending id order.
func (m *MergeBaser) MergeBasesMany(ctx context.Context, one object.Hash, others []object.Hash) ([]object.Hash, error) {
	bases, err := m.mergeBases(ctx, one, others)
	m.metrics.ObserveMergeBase(KindMany, err)
	return bases, err
}

// MergeBaseOctopus folds pairwise merge bases over ids from the left,
// keeping the lowest base at every step.
func (m *MergeBaser) MergeBaseOctopus(ctx context.Context, ids []object.Hash) (object.Hash, error) {
	base, err := m.octopus(ctx, ids)
	m.metrics.ObserveMergeBase(KindOctopus, err)
	return base, err
}

func (m *MergeBaser) octopus(ctx context.Context, ids []object.Hash) (object.Hash, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: octopus merge base of no commits", ErrInvalidInput)
	}
	ids, err := m.canonical(ids...)
	if err != nil {
		return "", err
	}
	result := ids[0]
	for _, id := range ids[1:] {
		bases, err := m.mergeBases(ctx, result, []object.Hash{id})
		if err != nil {
			return "", err
		}
		if len(bases) == 0 {
			return "", fmt.Errorf("octopus merge base: %s and %s: %w", result, id, ErrNoCommonAncestor)
		}
		result = bases[0]
	}
	return result, nil
}

// IsAncestor reports whether ancestor is reachable from descendant. A
// commit is its own ancestor.
func (m *MergeBaser) IsAncestor(ctx context.Context, ancestor, descendant object.Hash) (bool, error) {
	ok, err := m.isAncestor(ctx, ancestor, descendant)
	m.metrics.ObserveMergeBase(KindIsAncestor, err)
	return ok, err
}

func (m *MergeBaser) isAncestor(ctx context.Context, ancestor, descendant object.Hash) (bool, error) {
	ids, err := m.canonical(ancestor, descendant)
	if err != nil {
		return false, err
	}
	ancestor, descendant = ids[0], ids[1]
	if ancestor == descendant {
		return true, nil
	}
	anc, err := resolveNode(ctx, m.resolver, m.boundary, ancestor)
	if err != nil {
		return false, err
	}
	desc, err := resolveNode(ctx, m.resolver, m.boundary, descendant)
	if err != nil {
		return false, err
	}
	if anc.Generation > 0 && desc.Generation > 0 && anc.Generation >= desc.Generation {
		return false, nil
	}
	return m.reaches(ctx, []object.Hash{descendant}, anc)
}

// reaches reports whether target is an ancestor of (or equal to) one of
// starts, cutting the walk off below target's generation.
func (m *MergeBaser) reaches(ctx context.Context, starts []object.Hash, target object.CommitNode) (bool, error) {
	w := NewWalker(ctx, m.resolver, m.boundary, starts, MinGeneration(target.Generation), MaxSteps(m.maxSteps))
	found := false
	err := w.ForEach(func(node object.CommitNode) error {
		if node.ID == target.ID {
			found = true
			return ErrStopWalk
		}
		return nil
	})
	m.metrics.ObserveWalk(w.Steps())
	return found, err
}

// canonical validates ids and returns them in canonical lower-case form.
// Without a configured format ids are only checked for emptiness.
func (m *MergeBaser) canonical(ids ...object.Hash) ([]object.Hash, error) {
	out := make([]object.Hash, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%w: empty commit id", ErrInvalidInput)
		}
		if m.format.Size == 0 {
			out[i] = id
			continue
		}
		h, err := object.ParseHash(m.format, string(id))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		out[i] = h
	}
	return out, nil
}

func (m *MergeBaser) mergeBases(ctx context.Context, one object.Hash, others []object.Hash) ([]object.Hash, error) {
	if len(others) == 0 {
		return nil, fmt.Errorf("%w: merge base needs at least two commits", ErrInvalidInput)
	}
	ids, err := m.canonical(append([]object.Hash{one}, others...)...)
	if err != nil {
		return nil, err
	}
	one, others = ids[0], ids[1:]

	start := time.Now()
	p := newPainter(ctx, m, len(others)+1)
	candidates, err := p.paint(one, others)
	m.metrics.ObserveWalk(p.steps)
	if err != nil {
		return nil, err
	}
	bases, err := m.removeRedundant(ctx, candidates)
	if err != nil {
		return nil, err
	}
	m.logger.WithFields(logrus.Fields{
		"tips":       len(others) + 1,
		"steps":      p.steps,
		"candidates": len(candidates),
		"bases":      len(bases),
		"elapsed":    time.Since(start),
	}).Debug("merge base computed")
	return bases, nil
}

// removeRedundant drops every candidate that is an ancestor of another
// candidate and returns the rest sorted.
func (m *MergeBaser) removeRedundant(ctx context.Context, candidates []object.CommitNode) ([]object.Hash, error) {
	if len(candidates) <= 1 {
		out := make([]object.Hash, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, c.ID)
		}
		return out, nil
	}

	redundant := make([]bool, len(candidates))
	for i, c := range candidates {
		var starts []object.Hash
		for j, other := range candidates {
			if j == i || redundant[j] {
				continue
			}
			if c.Generation > 0 && other.Generation > 0 && other.Generation <= c.Generation {
				continue // cannot reach c
			}
			starts = append(starts, other.ID)
		}
		if len(starts) == 0 {
			continue
		}
		found, err := m.reaches(ctx, starts, c)
		if err != nil {
			return nil, err
		}
		redundant[i] = found
	}

	var out []object.Hash
	for i, c := range candidates {
		if !redundant[i] {
			out = append(out, c.ID)
		}
	}
	return object.SortHashes(out), nil
}
