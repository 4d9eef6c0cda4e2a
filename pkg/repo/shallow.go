package repo

import (
	"path/filepath"

	"github.com/odvcencio/refgraph/pkg/object"
)

// ShallowFile returns the path of the shallow commit list.
func (r *Repository) ShallowFile() string {
	return filepath.Join(r.gitDir, "shallow")
}

// IsShallow reports whether the repository has a shallow boundary.
func (r *Repository) IsShallow() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.boundary.Len() > 0
}

// ShallowCommits returns the boundary commits in ascending order.
func (r *Repository) ShallowCommits() []object.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.boundary.IDs()
}

// ReloadShallow re-reads the shallow file, e.g. after a fetch deepened or
// shallowed the history, and drops cached merge bases. Generations computed
// under a different boundary are dropped too, together with cached commits.
func (r *Repository) ReloadShallow() error {
	boundary, err := object.LoadShallowFile(r.ShallowFile(), r.format)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boundary = boundary
	r.epoch++
	r.bases.purge()
	if !r.index.Matches(boundary) {
		r.index.Reset(boundary)
		if r.cache != nil {
			r.cache.Purge()
		}
		r.logger.WithField("shallow", boundary.Len()).Info("shallow boundary changed, graph index dropped")
	}
	return nil
}
