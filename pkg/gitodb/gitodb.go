// Package gitodb resolves commits from a git object database through
// go-git, so the graph engine can run against real repositories.
package gitodb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	commitgraph "github.com/go-git/go-git/v5/plumbing/format/commitgraph/v2"
	cgobject "github.com/go-git/go-git/v5/plumbing/object/commitgraph"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/refgraph/pkg/log"
	"github.com/odvcencio/refgraph/pkg/object"
)

// ErrUnsupportedFormat is returned for ids the backing store cannot address.
var ErrUnsupportedFormat = errors.New("object format not supported by git object database")

// Store adapts a go-git storer to object.Resolver. When the repository has
// a commit-graph file, parents and generation numbers come from it and
// other commits fall back to the object store.
type Store struct {
	storer   storage.Storer
	logger   logrus.FieldLogger
	useGraph bool

	mu    sync.Mutex // go-git storers are not safe for concurrent reads
	nodes cgobject.CommitNodeIndex
	graph commitgraph.Index
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for adapter diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = l }
}

// WithoutCommitGraph ignores any commit-graph file and reads commits from
// the object store only.
func WithoutCommitGraph() Option {
	return func(s *Store) { s.useGraph = false }
}

// Open opens the object database of the repository at path, which is
// either a working tree holding .git or a git directory itself.
func Open(path string, opts ...Option) (*Store, error) {
	r, err := gitlib.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open object database %s: %w", path, err)
	}
	return New(r.Storer, opts...), nil
}

// New wraps an existing storer.
func New(s storage.Storer, opts ...Option) *Store {
	st := &Store{storer: s, useGraph: true}
	for _, opt := range opts {
		opt(st)
	}
	st.logger = log.OrDiscard(st.logger)

	st.nodes = cgobject.NewObjectCommitNodeIndex(s)
	fsStorage, ok := s.(*filesystem.Storage)
	if !st.useGraph || !ok {
		return st
	}
	// A missing or unreadable commit-graph only costs generation numbers.
	idx, err := commitgraph.OpenChainOrFileIndex(fsStorage.Filesystem())
	if err != nil {
		st.logger.WithError(err).Debug("no commit-graph")
		return st
	}
	st.graph = idx
	st.nodes = cgobject.NewGraphCommitNodeIndex(idx, s)
	st.logger.WithField("commits", idx.MaximumNumberOfHashes()).Debug("using commit-graph")
	return st
}

// HasCommitGraph reports whether generations come from a commit-graph file.
func (s *Store) HasCommitGraph() bool { return s.graph != nil }

// Close releases the commit-graph file, if one was opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil
	}
	err := s.graph.Close()
	s.graph = nil
	s.nodes = cgobject.NewObjectCommitNodeIndex(s.storer)
	return err
}

func toPlumbing(id object.Hash) (plumbing.Hash, error) {
	if len(id) != object.SHA1.HexLen() {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrUnsupportedFormat, id)
	}
	if _, err := object.ParseHash(object.SHA1, string(id)); err != nil {
		return plumbing.ZeroHash, err
	}
	return plumbing.NewHash(string(id)), nil
}

// Resolve implements object.Resolver.
func (s *Store) Resolve(ctx context.Context, id object.Hash) (object.CommitNode, error) {
	if err := ctx.Err(); err != nil {
		return object.CommitNode{}, err
	}
	h, err := toPlumbing(id)
	if err != nil {
		return object.CommitNode{}, err
	}

	s.mu.Lock()
	node, err := s.nodes.Get(h)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return object.CommitNode{}, fmt.Errorf("commit %s: %w", id, object.ErrObjectNotFound)
		}
		return object.CommitNode{}, fmt.Errorf("read commit %s: %w", id, err)
	}

	parents := node.ParentHashes()
	out := object.CommitNode{ID: id, Parents: make([]object.Hash, len(parents))}
	for i, p := range parents {
		out.Parents[i] = object.Hash(p.String())
	}
	// Commits outside the commit-graph report MaxUint64 and pre-generation
	// graphs report zero; both mean unknown.
	if g := node.Generation(); g > 0 && g < math.MaxUint32 {
		out.Generation = uint32(g)
	}
	return out, nil
}

// Exists implements object.Resolver.
func (s *Store) Exists(ctx context.Context, id object.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	h, err := toPlumbing(id)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	err = s.storer.HasEncodedObject(h)
	s.mu.Unlock()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("probe object %s: %w", id, err)
	}
}

// Shallow returns the repository's shallow commits as a boundary.
func (s *Store) Shallow() (object.ShallowBoundary, error) {
	s.mu.Lock()
	hashes, err := s.storer.Shallow()
	s.mu.Unlock()
	if err != nil {
		return object.ShallowBoundary{}, fmt.Errorf("read shallow list: %w", err)
	}
	ids := make([]object.Hash, len(hashes))
	for i, h := range hashes {
		ids[i] = object.Hash(h.String())
	}
	return object.NewShallowBoundary(ids...), nil
}
