package repo

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/refgraph/pkg/object"
)

func TestUpdateGraphIndex(t *testing.T) {
	r, mem := memRepo(t)
	ctx := context.Background()
	root, left, right, merge := diamond(mem)
	mustCreateBranch(t, r, "main", merge)
	mustCreateBranch(t, r, "side", left)
	// Tags may point at objects that are not commits.
	require.NoError(t, r.CreateTag(ctx, "blob", testID(0xb10b), false))

	added, err := r.UpdateGraphIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, added)
	_, err = os.Stat(r.graphIndexPath())
	require.NoError(t, err)

	for id, want := range map[object.Hash]uint32{root: 1, left: 2, right: 2, merge: 3} {
		gen, ok := r.GraphIndex().Generation(id)
		require.True(t, ok, id)
		require.Equal(t, want, gen, id)
	}

	added, err = r.UpdateGraphIndex(ctx)
	require.NoError(t, err)
	require.Zero(t, added)

	reopened, err := Open(r.GitDir(), WithResolver(mem))
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	require.Equal(t, 4, reopened.GraphIndex().Len())

	base, err := reopened.MergeBase(ctx, left, right)
	require.NoError(t, err)
	require.Equal(t, root, base)
}

func TestOpen_IgnoresDamagedGraphIndex(t *testing.T) {
	r, mem := memRepo(t)
	root, left, right, _ := diamond(mem)
	require.NoError(t, os.WriteFile(r.graphIndexPath(), []byte("garbage"), 0o644))

	reopened, err := Open(r.GitDir(), WithResolver(mem))
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	require.Zero(t, reopened.GraphIndex().Len())

	base, err := reopened.MergeBase(context.Background(), left, right)
	require.NoError(t, err)
	require.Equal(t, root, base)
}

func TestGraphIndexDisabled(t *testing.T) {
	r, mem := memRepo(t)
	mustCreateBranch(t, r, "main", testID(1))
	mem.Add(testID(1))
	_, err := r.UpdateGraphIndex(context.Background())
	require.NoError(t, err)

	cfg := r.Config()
	cfg.Walk.UseGraphIndex = false
	reopened, err := Open(r.GitDir(), WithConfig(cfg), WithResolver(mem))
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	require.Zero(t, reopened.GraphIndex().Len())
}

// shallowChain returns q1 <- q2 <- q3 <- b with b on the shallow boundary
// and generations indexed under it.
func shallowChain(t *testing.T) (r *Repository, mem *object.MemResolver, q3, b object.Hash) {
	t.Helper()
	r, mem = memRepo(t)
	q1, q2 := testID(0x11), testID(0x12)
	q3, b = testID(0x13), testID(0x14)
	mem.Add(q1)
	mem.Add(q2, q1)
	mem.Add(q3, q2)
	mem.Add(b, q3)
	mustCreateBranch(t, r, "main", b)

	require.NoError(t, os.WriteFile(r.ShallowFile(), []byte(string(b)+"\n"), 0o644))
	require.NoError(t, r.ReloadShallow())
	_, err := r.UpdateGraphIndex(context.Background())
	require.NoError(t, err)
	gen, ok := r.GraphIndex().Generation(b)
	require.True(t, ok)
	require.Equal(t, uint32(1), gen)
	return r, mem, q3, b
}

func TestReloadShallow_DropsGraphIndex(t *testing.T) {
	r, _, q3, b := shallowChain(t)
	ctx := context.Background()

	ok, err := r.IsAncestor(ctx, q3, b)
	require.NoError(t, err)
	require.False(t, ok, "q3 is hidden behind the boundary")

	require.NoError(t, os.Remove(r.ShallowFile()))
	require.NoError(t, r.ReloadShallow())
	require.Zero(t, r.GraphIndex().Len())

	ok, err = r.IsAncestor(ctx, q3, b)
	require.NoError(t, err)
	require.True(t, ok)

	// Reindexing computes full-depth generations.
	added, err := r.UpdateGraphIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, added)
	gen, _ := r.GraphIndex().Generation(b)
	require.Equal(t, uint32(4), gen)
	ok, err = r.IsAncestor(ctx, q3, b)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReloadShallow_SameBoundaryKeepsGraphIndex(t *testing.T) {
	r, _, _, _ := shallowChain(t)
	require.NoError(t, r.ReloadShallow())
	require.Equal(t, 1, r.GraphIndex().Len())
}

func TestOpen_IgnoresGraphIndexOfAnotherBoundary(t *testing.T) {
	r, mem, q3, b := shallowChain(t)
	require.NoError(t, os.Remove(r.ShallowFile()))

	reopened, err := Open(r.GitDir(), WithResolver(mem))
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	require.Zero(t, reopened.GraphIndex().Len())

	ok, err := reopened.IsAncestor(context.Background(), q3, b)
	require.NoError(t, err)
	require.True(t, ok)
}
