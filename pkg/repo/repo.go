package repo

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/refgraph/pkg/config"
	"github.com/odvcencio/refgraph/pkg/graph"
	"github.com/odvcencio/refgraph/pkg/graphindex"
	"github.com/odvcencio/refgraph/pkg/log"
	"github.com/odvcencio/refgraph/pkg/metrics"
	"github.com/odvcencio/refgraph/pkg/object"
	"github.com/odvcencio/refgraph/pkg/refs"
)

// Repository is an opened repository: its reference store, the object
// resolver used for graph queries and the settings both were built from.
// All state is held here; nothing is process-global.
type Repository struct {
	gitDir  string
	workDir string // empty for bare repositories
	cfg     config.Config
	format  object.Format

	refs     *refs.Store
	odb      object.Resolver // as supplied or opened
	resolver object.Resolver // odb behind the commit cache and graph index
	cache    *object.CachingResolver // nil when disabled
	index    *graphindex.Index
	closer   io.Closer

	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	boundary object.ShallowBoundary
	epoch    uint64 // bumped whenever boundary changes
	bases    *mergeBaseCache
}

// Option configures Init and Open.
type Option func(*options)

type options struct {
	cfg      *config.Config
	resolver object.Resolver
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// WithConfig replaces the settings read from disk. Init writes them to the
// new repository.
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = &cfg }
}

// WithResolver supplies the object database instead of opening the
// repository's own through go-git. It is required for SHA-256
// repositories.
func WithResolver(r object.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the collectors shared by every component.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides the clock used for reflog timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newRepository(gitDir, workDir string, cfg config.Config, odb object.Resolver, closer io.Closer, o options) (*Repository, error) {
	r := &Repository{
		gitDir:  gitDir,
		workDir: workDir,
		cfg:     cfg,
		format:  cfg.ObjectFormat(),
		odb:     odb,
		closer:  closer,
		logger:  log.OrDiscard(o.logger),
		metrics: o.metrics,
		now:     o.now,
		bases:   newMergeBaseCache(),
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.logger = r.logger.WithField("git_dir", gitDir)

	r.refs = refs.NewStore(gitDir,
		refs.WithFormat(r.format),
		refs.WithMaxSymrefDepth(cfg.Refs.MaxSymrefDepth),
		refs.WithLockTimeout(cfg.Refs.LockTimeout),
		refs.WithActor(refs.Signature{Name: cfg.User.Name, Email: cfg.User.Email}),
		refs.WithClock(r.now),
		refs.WithLogger(r.logger),
		refs.WithMetrics(r.metrics),
	)

	var cached object.Resolver = odb
	if cfg.Walk.CacheSize > 0 {
		c, err := object.NewCachingResolver(odb, cfg.Walk.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("commit cache: %w", err)
		}
		r.cache, cached = c, c
	}

	boundary, err := object.LoadShallowFile(r.ShallowFile(), r.format)
	if err != nil {
		return nil, err
	}
	r.boundary = boundary

	r.index = graphindex.New(r.format)
	r.index.Reset(boundary)
	if cfg.Walk.UseGraphIndex {
		loaded, err := graphindex.Load(r.graphIndexPath())
		switch {
		case err != nil:
			// A damaged index only costs pruning; queries stay correct.
			r.logger.WithError(err).Warn("ignoring graph index")
		case loaded != nil && loaded.Format() != r.format:
			r.logger.WithField("index_format", loaded.Format().Name).Warn("ignoring graph index of another object format")
		case loaded != nil && !loaded.Matches(boundary):
			r.logger.Warn("ignoring graph index built for another shallow boundary")
		case loaded != nil:
			r.index = loaded
		}
	}
	r.resolver = r.index.Wrap(cached)
	return r, nil
}

// Close releases files held by the object database.
func (r *Repository) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// GitDir returns the repository's git directory.
func (r *Repository) GitDir() string { return r.gitDir }

// WorkDir returns the working tree root, or "" for a bare repository.
func (r *Repository) WorkDir() string { return r.workDir }

// IsBare reports whether the repository has no working tree.
func (r *Repository) IsBare() bool { return r.workDir == "" }

// ObjectFormat returns the repository-wide object id format.
func (r *Repository) ObjectFormat() object.Format { return r.format }

// Config returns the settings the repository was opened with.
func (r *Repository) Config() config.Config { return r.cfg }

// Refs returns the reference store.
func (r *Repository) Refs() *refs.Store { return r.refs }

// Logger returns the repository's logger.
func (r *Repository) Logger() logrus.FieldLogger { return r.logger }

func (r *Repository) mergeBaser() *graph.MergeBaser {
	m, _ := r.mergeBaserAt()
	return m
}

// mergeBaserAt also returns the boundary epoch the MergeBaser was built
// for.
func (r *Repository) mergeBaserAt() (*graph.MergeBaser, uint64) {
	r.mu.RLock()
	boundary, epoch := r.boundary, r.epoch
	r.mu.RUnlock()
	return graph.NewMergeBaser(r.resolver, boundary,
		graph.WithFormat(r.format),
		graph.WithMaxSteps(r.cfg.Walk.MaxSteps),
		graph.WithLogger(r.logger),
		graph.WithMetrics(r.metrics),
	), epoch
}
