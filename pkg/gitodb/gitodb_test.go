package gitodb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	commitgraph "github.com/go-git/go-git/v5/plumbing/format/commitgraph/v2"
	gitobject "github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/refgraph/pkg/graph"
	"github.com/odvcencio/refgraph/pkg/object"
)

var testWhen = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type commits struct {
	t     *testing.T
	s     storer.EncodedObjectStorer
	count int
}

func (c *commits) add(parents ...plumbing.Hash) plumbing.Hash {
	c.t.Helper()
	c.count++
	sig := gitobject.Signature{Name: "Test User", Email: "test@example.com", When: testWhen.Add(time.Duration(c.count) * time.Minute)}
	commit := &gitobject.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      fmt.Sprintf("commit %d\n", c.count),
		TreeHash:     plumbing.ZeroHash,
		ParentHashes: parents,
	}
	obj := c.s.NewEncodedObject()
	require.NoError(c.t, commit.Encode(obj))
	h, err := c.s.SetEncodedObject(obj)
	require.NoError(c.t, err)
	return h
}

func id(h plumbing.Hash) object.Hash { return object.Hash(h.String()) }

func TestResolve(t *testing.T) {
	s := memory.NewStorage()
	c := &commits{t: t, s: s}
	root := c.add()
	left := c.add(root)
	right := c.add(root)
	merge := c.add(left, right)

	st := New(s)
	require.False(t, st.HasCommitGraph())

	node, err := st.Resolve(context.Background(), id(merge))
	require.NoError(t, err)
	require.Equal(t, id(merge), node.ID)
	require.Equal(t, []object.Hash{id(left), id(right)}, node.Parents)
	require.Zero(t, node.Generation)

	node, err = st.Resolve(context.Background(), id(root))
	require.NoError(t, err)
	require.Empty(t, node.Parents)

	ok, err := st.Exists(context.Background(), id(left))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestResolve_Errors(t *testing.T) {
	st := New(memory.NewStorage())
	missing := object.Hash("0123456789abcdef0123456789abcdef01234567")

	_, err := st.Resolve(context.Background(), missing)
	require.ErrorIs(t, err, object.ErrObjectNotFound)

	ok, err := st.Exists(context.Background(), missing)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = st.Resolve(context.Background(), object.SHA256.Zero())
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = st.Resolve(context.Background(), "zz23456789abcdef0123456789abcdef01234567")
	require.ErrorIs(t, err, object.ErrInvalidHash)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = st.Resolve(ctx, missing)
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolve_BlobIsNotACommit(t *testing.T) {
	s := memory.NewStorage()
	obj := s.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	require.NoError(t, err)
	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	h, err := s.SetEncodedObject(obj)
	require.NoError(t, err)

	st := New(s)
	ok, err := st.Exists(context.Background(), id(h))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = st.Resolve(context.Background(), id(h))
	require.ErrorIs(t, err, object.ErrObjectNotFound)
}

func TestShallow(t *testing.T) {
	s := memory.NewStorage()
	c := &commits{t: t, s: s}
	root := c.add()
	tip := c.add(root)
	require.NoError(t, s.SetShallow([]plumbing.Hash{tip}))

	boundary, err := New(s).Shallow()
	require.NoError(t, err)
	require.True(t, boundary.Contains(id(tip)))
	require.False(t, boundary.Contains(id(root)))
}

func TestMergeBaseOverGitObjects(t *testing.T) {
	s := memory.NewStorage()
	c := &commits{t: t, s: s}
	root := c.add()
	base := c.add(root)
	a := c.add(base)
	b := c.add(base)

	mb := graph.NewMergeBaser(New(s), object.ShallowBoundary{})
	got, err := mb.MergeBase(context.Background(), id(a), id(b))
	require.NoError(t, err)
	require.Equal(t, id(base), got)
}

func TestOpen_CommitGraphGenerations(t *testing.T) {
	dir := t.TempDir()
	r, err := gitlib.PlainInit(dir, false)
	require.NoError(t, err)

	c := &commits{t: t, s: r.Storer}
	root := c.add()
	mid := c.add(root)
	tip := c.add(mid)
	outside := c.add(tip)

	// Describe the first three commits in a commit-graph file.
	idx := commitgraph.NewMemoryIndex()
	for i, h := range []plumbing.Hash{root, mid, tip} {
		commit, err := gitobject.GetCommit(r.Storer, h)
		require.NoError(t, err)
		idx.Add(h, &commitgraph.CommitData{
			TreeHash:     commit.TreeHash,
			ParentHashes: commit.ParentHashes,
			Generation:   uint64(i + 1),
			When:         commit.Committer.When,
		})
	}
	info := filepath.Join(dir, ".git", "objects", "info")
	require.NoError(t, os.MkdirAll(info, 0o755))
	f, err := os.Create(filepath.Join(info, "commit-graph"))
	require.NoError(t, err)
	require.NoError(t, commitgraph.NewEncoder(f).Encode(idx))
	require.NoError(t, f.Close())

	st, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.True(t, st.HasCommitGraph())

	node, err := st.Resolve(context.Background(), id(tip))
	require.NoError(t, err)
	require.Equal(t, uint32(3), node.Generation)
	require.Equal(t, []object.Hash{id(mid)}, node.Parents)

	// Commits newer than the graph fall back to the object store.
	node, err = st.Resolve(context.Background(), id(outside))
	require.NoError(t, err)
	require.Zero(t, node.Generation)
	require.Equal(t, []object.Hash{id(tip)}, node.Parents)

	plain, err := Open(dir, WithoutCommitGraph())
	require.NoError(t, err)
	require.False(t, plain.HasCommitGraph())
	node, err = plain.Resolve(context.Background(), id(tip))
	require.NoError(t, err)
	require.Zero(t, node.Generation)
}

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir())
	require.ErrorIs(t, err, gitlib.ErrRepositoryNotExists)
}
