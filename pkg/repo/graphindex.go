package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/refgraph/pkg/graphindex"
	"github.com/odvcencio/refgraph/pkg/object"
	"github.com/odvcencio/refgraph/pkg/refs"
)

func (r *Repository) graphIndexPath() string {
	return filepath.Join(r.gitDir, graphindex.FileName)
}

// GraphIndex returns the generation index used by graph queries.
func (r *Repository) GraphIndex() *graphindex.Index { return r.index }

// UpdateGraphIndex adds generation numbers for every commit reachable from
// HEAD and the refs under refs/, then saves the index. It returns how many
// commits were added. Refs pointing at non-commits are skipped.
func (r *Repository) UpdateGraphIndex(ctx context.Context) (int, error) {
	tips, err := r.tips()
	if err != nil {
		return 0, fmt.Errorf("update graph index: %w", err)
	}

	r.mu.RLock()
	boundary := r.boundary
	r.mu.RUnlock()

	added := 0
	for _, tip := range tips {
		n, err := r.index.Update(ctx, r.odb, boundary, tip)
		added += n
		if err != nil {
			if errors.Is(err, object.ErrObjectNotFound) && !r.isCommit(ctx, tip) {
				r.logger.WithField("id", tip).Debug("graph index: skipping non-commit tip")
				continue
			}
			return added, fmt.Errorf("update graph index: %w", err)
		}
	}
	if err := r.index.Save(r.graphIndexPath()); err != nil {
		return added, err
	}
	r.logger.WithFields(logrus.Fields{
		"tips":    len(tips),
		"added":   added,
		"commits": r.index.Len(),
	}).Info("graph index updated")
	return added, nil
}

// isCommit reports whether id itself resolves as a commit.
func (r *Repository) isCommit(ctx context.Context, id object.Hash) bool {
	_, err := r.odb.Resolve(ctx, id)
	return err == nil
}

// tips returns the distinct ids HEAD and refs/ point at.
func (r *Repository) tips() ([]object.Hash, error) {
	names, err := r.refs.Names("refs/")
	if err != nil {
		return nil, err
	}
	names = append([]refs.Name{refs.HEAD}, names...)
	var tips []object.Hash
	for _, n := range names {
		id, err := r.refs.Peel(n)
		if err != nil {
			if errors.Is(err, refs.ErrNotFound) {
				continue // unborn branch or dangling symref
			}
			return nil, err
		}
		tips = append(tips, id)
	}
	return object.SortHashes(tips), nil
}
