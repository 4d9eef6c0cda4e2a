// Package graphindex stores precomputed generation numbers for a commit
// graph so merge-base queries can prune by generation.
package graphindex

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/odvcencio/refgraph/pkg/object"
)

// FileName is the index file name inside a git directory.
const FileName = "refgraph-index.zst"

const headerPrefix = "refgraph-index v1 "

var (
	// ErrCorruptIndex is returned when an index file cannot be parsed.
	ErrCorruptIndex = errors.New("corrupt graph index")
	// ErrCycle is returned when the commit graph loops back on itself.
	ErrCycle = errors.New("commit graph cycle")
)

// Index maps commit ids to generation numbers: 1 for a root (or a shallow
// boundary commit), otherwise one more than the highest parent. It is safe
// for concurrent reads; Update takes a write lock.
//
// Generations depend on the shallow boundary they were computed under, so
// the index records a digest of it.
type Index struct {
	format object.Format

	mu       sync.RWMutex
	gens     map[object.Hash]uint32
	boundary string
}

// BoundaryDigest identifies a shallow boundary. The empty boundary has the
// empty digest.
func BoundaryDigest(b object.ShallowBoundary) string {
	if b.Len() == 0 {
		return ""
	}
	h := sha256.New()
	for _, id := range b.IDs() {
		h.Write([]byte(id))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// New returns an empty index for ids of format f.
func New(f object.Format) *Index {
	return &Index{format: f, gens: make(map[object.Hash]uint32)}
}

// Build computes generations for every commit reachable from tips.
func Build(ctx context.Context, resolver object.Resolver, boundary object.ShallowBoundary, f object.Format, tips ...object.Hash) (*Index, error) {
	idx := New(f)
	if _, err := idx.Update(ctx, resolver, boundary, tips...); err != nil {
		return nil, err
	}
	return idx, nil
}

// Format returns the object id format of the index.
func (idx *Index) Format() object.Format { return idx.format }

// Matches reports whether the index was computed under boundary.
func (idx *Index) Matches(boundary object.ShallowBoundary) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.boundary == BoundaryDigest(boundary)
}

// Reset drops every generation and records boundary as the one future
// updates compute under.
func (idx *Index) Reset(boundary object.ShallowBoundary) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset(BoundaryDigest(boundary))
}

func (idx *Index) reset(digest string) {
	idx.gens = make(map[object.Hash]uint32)
	idx.boundary = digest
}

// Len returns the number of indexed commits.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.gens)
}

// Generation returns the generation of id, if indexed.
func (idx *Index) Generation(id object.Hash) (uint32, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	g, ok := idx.gens[id]
	return g, ok
}

type frame struct {
	node object.CommitNode
	next int // index of the next parent to visit
	max  uint32
}

// Update adds every commit reachable from tips that is not yet indexed and
// returns how many were added. Commits already present are not revisited,
// so updating after new commits only walks the new part of the graph. An
// index computed under a different boundary is emptied first.
func (idx *Index) Update(ctx context.Context, resolver object.Resolver, boundary object.ShallowBoundary, tips ...object.Hash) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if digest := BoundaryDigest(boundary); digest != idx.boundary {
		idx.reset(digest)
	}

	added := 0
	onStack := make(map[object.Hash]bool)
	for _, tip := range tips {
		if _, ok := idx.gens[tip]; ok {
			continue
		}
		node, err := resolve(ctx, resolver, boundary, tip)
		if err != nil {
			return added, err
		}
		stack := []*frame{{node: node}}
		onStack[tip] = true

		// Post-order: a commit's generation is known once all its
		// parents are done.
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return added, err
			}
			top := stack[len(stack)-1]
			if top.next < len(top.node.Parents) {
				p := top.node.Parents[top.next]
				top.next++
				if g, ok := idx.gens[p]; ok {
					top.max = max(top.max, g)
					continue
				}
				if onStack[p] {
					return added, fmt.Errorf("%w at %s", ErrCycle, p)
				}
				parent, err := resolve(ctx, resolver, boundary, p)
				if err != nil {
					return added, err
				}
				onStack[p] = true
				stack = append(stack, &frame{node: parent})
				continue
			}

			gen := top.max + 1
			if top.max >= math.MaxUint32-1 {
				gen = math.MaxUint32 - 1
			}
			idx.gens[top.node.ID] = gen
			added++
			delete(onStack, top.node.ID)
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.max = max(parent.max, gen)
			}
		}
	}
	return added, nil
}

func resolve(ctx context.Context, resolver object.Resolver, boundary object.ShallowBoundary, id object.Hash) (object.CommitNode, error) {
	node, err := resolver.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, object.ErrObjectNotFound) && boundary.Contains(id) {
			return object.CommitNode{ID: id}, nil
		}
		return object.CommitNode{}, fmt.Errorf("graph index: %w", err)
	}
	if boundary.Contains(id) {
		node.Parents = nil
	}
	return node, nil
}

// WriteTo writes the index as a zstd frame holding a header line and one
// "<id> <generation>" line per commit in id order. The header names the
// object format followed by the boundary digest, if any.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	idx.mu.RLock()
	ids := make([]object.Hash, 0, len(idx.gens))
	for id := range idx.gens {
		ids = append(ids, id)
	}
	digest := idx.boundary
	idx.mu.RUnlock()
	ids = object.SortHashes(ids)

	cw := &countingWriter{w: w}
	enc, err := zstd.NewWriter(cw)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(enc)
	if digest == "" {
		fmt.Fprintf(bw, "%s%s\n", headerPrefix, idx.format.Name)
	} else {
		fmt.Fprintf(bw, "%s%s %s\n", headerPrefix, idx.format.Name, digest)
	}
	for _, id := range ids {
		g, _ := idx.Generation(id)
		fmt.Fprintf(bw, "%s %d\n", id, g)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return cw.n, err
	}
	if err := enc.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Read parses an index written by WriteTo.
func Read(r io.Reader) (*Index, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
		}
		return nil, fmt.Errorf("%w: missing header", ErrCorruptIndex)
	}
	header := scanner.Text()
	if !strings.HasPrefix(header, headerPrefix) {
		return nil, fmt.Errorf("%w: bad header %q", ErrCorruptIndex, header)
	}
	formatName, digest, _ := strings.Cut(strings.TrimPrefix(header, headerPrefix), " ")
	f, err := object.ParseFormat(formatName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return nil, fmt.Errorf("%w: bad boundary digest %q", ErrCorruptIndex, digest)
	}

	idx := New(f)
	idx.boundary = digest
	line := 1
	for scanner.Scan() {
		line++
		idText, genText, ok := strings.Cut(scanner.Text(), " ")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing generation", ErrCorruptIndex, line)
		}
		id, err := object.ParseHash(f, idText)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrCorruptIndex, line, err)
		}
		g, err := strconv.ParseUint(genText, 10, 32)
		if err != nil || g == 0 {
			return nil, fmt.Errorf("%w: line %d: bad generation %q", ErrCorruptIndex, line, genText)
		}
		idx.gens[id] = uint32(g)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	return idx, nil
}

// Load reads the index at path. A missing file yields (nil, nil).
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load graph index: %w", err)
	}
	defer f.Close()
	idx, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("load graph index %s: %w", path, err)
	}
	return idx, nil
}

// Save atomically writes the index to path.
func (idx *Index) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".graph-index-tmp-*")
	if err != nil {
		return fmt.Errorf("save graph index: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := idx.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save graph index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save graph index: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save graph index: rename: %w", err)
	}
	return nil
}

// Wrap returns a resolver that fills in CommitNode.Generation from the
// index. Commits missing from the index keep whatever next reports.
func (idx *Index) Wrap(next object.Resolver) object.Resolver {
	return &resolver{idx: idx, next: next}
}

type resolver struct {
	idx  *Index
	next object.Resolver
}

func (r *resolver) Resolve(ctx context.Context, id object.Hash) (object.CommitNode, error) {
	node, err := r.next.Resolve(ctx, id)
	if err != nil {
		return node, err
	}
	if g, ok := r.idx.Generation(id); ok {
		node.Generation = g
	}
	return node, nil
}

func (r *resolver) Exists(ctx context.Context, id object.Hash) (bool, error) {
	return r.next.Exists(ctx, id)
}
