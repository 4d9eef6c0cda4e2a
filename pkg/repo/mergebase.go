package repo

import (
	"context"
	"fmt"
	"slices"

	"github.com/odvcencio/refgraph/pkg/graph"
	"github.com/odvcencio/refgraph/pkg/object"
)

// MergeBases returns every best common ancestor of a and b in ascending id
// order. Disjoint histories yield an empty result. Results are cached per
// unordered pair.
func (r *Repository) MergeBases(ctx context.Context, a, b object.Hash) ([]object.Hash, error) {
	a, b = r.canonical(a), r.canonical(b)
	if bases, ok := r.bases.load(a, b); ok {
		return slices.Clone(bases), nil
	}
	m, epoch := r.mergeBaserAt()
	bases, err := m.MergeBases(ctx, a, b)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	if r.epoch == epoch {
		r.bases.store(a, b, slices.Clone(bases))
	}
	r.mu.RUnlock()
	return bases, nil
}

// MergeBase returns the lowest of the best common ancestors of a and b, or
// an error wrapping graph.ErrNoCommonAncestor.
func (r *Repository) MergeBase(ctx context.Context, a, b object.Hash) (object.Hash, error) {
	bases, err := r.MergeBases(ctx, a, b)
	if err != nil {
		return "", err
	}
	if len(bases) == 0 {
		return "", fmt.Errorf("merge base of %s and %s: %w", a, b, graph.ErrNoCommonAncestor)
	}
	return bases[0], nil
}

// MergeBasesMany returns the best commits reachable from one and from every
// commit in others.
func (r *Repository) MergeBasesMany(ctx context.Context, one object.Hash, others []object.Hash) ([]object.Hash, error) {
	return r.mergeBaser().MergeBasesMany(ctx, one, others)
}

// MergeBaseOctopus returns the merge base of all ids, folded pairwise from
// the left.
func (r *Repository) MergeBaseOctopus(ctx context.Context, ids []object.Hash) (object.Hash, error) {
	return r.mergeBaser().MergeBaseOctopus(ctx, ids)
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (r *Repository) IsAncestor(ctx context.Context, ancestor, descendant object.Hash) (bool, error) {
	return r.mergeBaser().IsAncestor(ctx, ancestor, descendant)
}

// HasObject reports whether the object database stores id.
func (r *Repository) HasObject(ctx context.Context, id object.Hash) (bool, error) {
	id, err := object.ParseHash(r.format, string(id))
	if err != nil {
		return false, err
	}
	return r.odb.Exists(ctx, id)
}

// canonical lower-cases a well-formed id so that both spellings share a
// cache entry. Malformed ids are returned unchanged for the graph layer
// to reject.
func (r *Repository) canonical(id object.Hash) object.Hash {
	if h, err := object.ParseHash(r.format, string(id)); err == nil {
		return h
	}
	return id
}
