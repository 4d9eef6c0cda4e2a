package refs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/refgraph/pkg/log"
	"github.com/odvcencio/refgraph/pkg/metrics"
	"github.com/odvcencio/refgraph/pkg/object"
)

const (
	// DefaultMaxSymrefDepth bounds symbolic dereferencing, matching git.
	DefaultMaxSymrefDepth = 5
	// DefaultLockTimeout bounds how long a transaction waits for a ref
	// lock held by another process.
	DefaultLockTimeout = 2 * time.Second

	packedRefsFile = "packed-refs"
)

// Store holds the references of one repository: loose ref files and
// packed-refs under dir, plus their reflogs under dir/logs.
//
// Writes go through Apply and are serialised. Reads take no lock.
type Store struct {
	dir            string
	format         object.Format
	maxSymrefDepth int
	lockTimeout    time.Duration
	actor          Signature
	now            func() time.Time
	logger         logrus.FieldLogger
	metrics        *metrics.Metrics

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithFormat sets the object id format. Defaults to SHA-1.
func WithFormat(f object.Format) Option {
	return func(s *Store) { s.format = f }
}

// WithMaxSymrefDepth sets the symbolic dereference bound.
func WithMaxSymrefDepth(depth int) Option {
	return func(s *Store) {
		if depth > 0 {
			s.maxSymrefDepth = depth
		}
	}
}

// WithLockTimeout sets how long Apply waits for a held ref lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithActor sets the identity recorded in reflog entries.
func WithActor(sig Signature) Option {
	return func(s *Store) { s.actor = sig }
}

// WithClock overrides the reflog clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for transaction diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics sets the collectors updated by Apply.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore returns a Store rooted at dir (the repository's git directory).
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:            dir,
		format:         object.SHA1,
		maxSymrefDepth: DefaultMaxSymrefDepth,
		lockTimeout:    DefaultLockTimeout,
		actor:          Signature{Name: "refgraph", Email: "refgraph@localhost"},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDiscard(s.logger)
	return s
}

// Dir returns the directory the store reads and writes.
func (s *Store) Dir() string { return s.dir }

// Format returns the object id format of the store.
func (s *Store) Format() object.Format { return s.format }

func (s *Store) refPath(n Name) string {
	return filepath.Join(s.dir, filepath.FromSlash(string(n)))
}

// Find returns the reference stored under name without dereferencing it.
func (s *Store) Find(name Name) (Reference, error) {
	if err := ValidateName(name); err != nil {
		return Reference{}, err
	}
	packed, err := s.readPacked()
	if err != nil {
		return Reference{}, err
	}
	target, err := s.readTarget(name, packed)
	if err != nil {
		return Reference{}, err
	}
	if target == nil {
		return Reference{}, fmt.Errorf("find %q: %w", name, ErrNotFound)
	}
	return Reference{Name: name, Target: target}, nil
}

// Head returns the HEAD reference as stored.
func (s *Store) Head() (Reference, error) {
	return s.Find(HEAD)
}

// Peel follows name through symbolic refs and returns the object id it
// finally points at. Cycles and chains longer than the configured depth
// fail with ErrSymrefDepth; a chain ending at a missing ref fails with
// ErrNotFound.
func (s *Store) Peel(name Name) (object.Hash, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	packed, err := s.readPacked()
	if err != nil {
		return "", err
	}
	id, _, err := s.peel(name, packed)
	return id, err
}

// peel returns the final id and the chain of names visited, starting with
// name itself.
func (s *Store) peel(name Name, packed map[Name]object.Hash) (object.Hash, []Name, error) {
	chain := []Name{name}
	seen := map[Name]struct{}{name: {}}
	cur := name
	for {
		target, err := s.readTarget(cur, packed)
		if err != nil {
			return "", chain, err
		}
		switch t := target.(type) {
		case nil:
			return "", chain, fmt.Errorf("peel %q: %q: %w", name, cur, ErrNotFound)
		case Direct:
			return t.ID, chain, nil
		case Symbolic:
			if _, dup := seen[t.Name]; dup {
				return "", chain, fmt.Errorf("peel %q: %w: cycle at %q", name, ErrSymrefDepth, t.Name)
			}
			if len(chain) > s.maxSymrefDepth {
				return "", chain, fmt.Errorf("peel %q: %w: more than %d levels", name, ErrSymrefDepth, s.maxSymrefDepth)
			}
			seen[t.Name] = struct{}{}
			chain = append(chain, t.Name)
			cur = t.Name
		default:
			panic(fmt.Sprintf("refs: unknown target type %T", target))
		}
	}
}

// List returns every reference under refs/, sorted by name. HEAD is not
// included; use Head.
func (s *Store) List(prefix string) ([]Reference, error) {
	packed, err := s.readPacked()
	if err != nil {
		return nil, err
	}
	names, err := s.listNames(prefix, packed)
	if err != nil {
		return nil, err
	}
	out := make([]Reference, 0, len(names))
	for _, n := range names {
		target, err := s.readTarget(n, packed)
		if err != nil {
			return nil, err
		}
		if target == nil {
			// Deleted between the directory scan and the read.
			continue
		}
		out = append(out, Reference{Name: n, Target: target})
	}
	return out, nil
}

// Names returns the names of every reference under refs/, sorted.
func (s *Store) Names(prefix string) ([]Name, error) {
	packed, err := s.readPacked()
	if err != nil {
		return nil, err
	}
	return s.listNames(prefix, packed)
}

func (s *Store) listNames(prefix string, packed map[Name]object.Hash) ([]Name, error) {
	if prefix == "" {
		prefix = "refs/"
	}
	set := make(map[Name]struct{})
	for n := range packed {
		if strings.HasPrefix(string(n), prefix) {
			set[n] = struct{}{}
		}
	}

	root := filepath.Join(s.dir, "refs")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		n := Name(filepath.ToSlash(rel))
		if !strings.HasPrefix(string(n), prefix) || ValidateName(n) != nil {
			return nil
		}
		set[n] = struct{}{}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list refs: %w", err)
	}

	names := make([]Name, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

// readTarget returns the current target of name, loose file first, then
// packed-refs. A missing ref yields (nil, nil).
func (s *Store) readTarget(name Name, packed map[Name]object.Hash) (Target, error) {
	path := s.refPath(name)
	data, err := os.ReadFile(path)
	if err == nil {
		return s.parseTarget(name, data)
	}
	// A missing file, a file where a parent directory should be, or a
	// directory of refs at this path all mean "no loose ref".
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) && !isDir(path) {
		return nil, fmt.Errorf("read ref %q: %w", name, err)
	}
	if id, ok := packed[name]; ok {
		return Direct{ID: id}, nil
	}
	return nil, nil
}

func (s *Store) parseTarget(name Name, data []byte) (Target, error) {
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, "ref:") {
		target := Name(strings.TrimSpace(strings.TrimPrefix(content, "ref:")))
		if err := ValidateName(target); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrCorruptRef, name, err)
		}
		return Symbolic{Name: target}, nil
	}
	id, err := object.ParseHash(s.format, content)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrCorruptRef, name, err)
	}
	return Direct{ID: id}, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
