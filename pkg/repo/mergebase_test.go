package repo

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/refgraph/pkg/graph"
	"github.com/odvcencio/refgraph/pkg/object"
)

func TestMergeBase_Diamond(t *testing.T) {
	r, mem := memRepo(t)
	ctx := context.Background()
	root, left, right, merge := diamond(mem)

	base, err := r.MergeBase(ctx, left, right)
	require.NoError(t, err)
	require.Equal(t, root, base)
	require.Equal(t, 1, r.bases.len())

	// The reversed pair hits the same cache entry.
	bases, err := r.MergeBases(ctx, right, left)
	require.NoError(t, err)
	require.Equal(t, []object.Hash{root}, bases)
	require.Equal(t, 1, r.bases.len())

	// Callers may not corrupt cached results.
	bases[0] = testID(99)
	base, err = r.MergeBase(ctx, left, right)
	require.NoError(t, err)
	require.Equal(t, root, base)

	base, err = r.MergeBase(ctx, merge, left)
	require.NoError(t, err)
	require.Equal(t, left, base)
}

func TestMergeBase_UpperCaseIDs(t *testing.T) {
	r, mem := memRepo(t)
	ctx := context.Background()
	hexID := func(c string) object.Hash { return object.Hash(strings.Repeat(c, 40)) }
	root, left, right, merge := hexID("a"), hexID("b"), hexID("c"), hexID("d")
	mem.Add(root)
	mem.Add(left, root)
	mem.Add(right, root)
	mem.Add(merge, left, right)
	upper := func(id object.Hash) object.Hash { return object.Hash(strings.ToUpper(string(id))) }

	base, err := r.MergeBase(ctx, upper(left), upper(right))
	require.NoError(t, err)
	require.Equal(t, root, base)
	_, err = r.MergeBase(ctx, left, right)
	require.NoError(t, err)
	require.Equal(t, 1, r.bases.len())

	ok, err := r.IsAncestor(ctx, upper(root), upper(merge))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.HasObject(ctx, upper(left))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMergeBase_NoCommonAncestor(t *testing.T) {
	r, mem := memRepo(t)
	a, b := testID(10), testID(20)
	mem.Add(a)
	mem.Add(b)

	bases, err := r.MergeBases(context.Background(), a, b)
	require.NoError(t, err)
	require.Empty(t, bases)

	_, err = r.MergeBase(context.Background(), a, b)
	require.ErrorIs(t, err, graph.ErrNoCommonAncestor)
	require.Equal(t, KindNoCommonAncestor, KindOf(err))
}

func TestMergeBase_InvalidInput(t *testing.T) {
	r, _ := memRepo(t)
	_, err := r.MergeBase(context.Background(), "abc", testID(1))
	require.ErrorIs(t, err, graph.ErrInvalidInput)
	require.Equal(t, KindInvalidInput, KindOf(err))
	require.Zero(t, r.bases.len())
}

func TestMergeBase_MissingCommit(t *testing.T) {
	r, mem := memRepo(t)
	mem.Add(testID(1))
	_, err := r.MergeBase(context.Background(), testID(1), testID(2))
	require.Error(t, err)
	require.Equal(t, KindObjectNotFound, KindOf(err))
}

func TestMergeBasesMany_AndOctopus(t *testing.T) {
	r, mem := memRepo(t)
	ctx := context.Background()
	root, left, right, merge := diamond(mem)
	extra := testID(5)
	mem.Add(extra, left)

	bases, err := r.MergeBasesMany(ctx, merge, []object.Hash{extra, right})
	require.NoError(t, err)
	require.Equal(t, []object.Hash{root}, bases)

	base, err := r.MergeBaseOctopus(ctx, []object.Hash{merge, extra, left})
	require.NoError(t, err)
	require.Equal(t, left, base)

	_, err = r.MergeBaseOctopus(ctx, nil)
	require.ErrorIs(t, err, graph.ErrInvalidInput)
}

func TestIsAncestor(t *testing.T) {
	r, mem := memRepo(t)
	ctx := context.Background()
	root, left, right, merge := diamond(mem)

	for _, tc := range []struct {
		ancestor, descendant object.Hash
		want                 bool
	}{
		{root, merge, true},
		{left, merge, true},
		{merge, merge, true},
		{left, right, false},
		{merge, root, false},
	} {
		got, err := r.IsAncestor(ctx, tc.ancestor, tc.descendant)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "%s -> %s", tc.ancestor, tc.descendant)
	}
}

func TestHasObject(t *testing.T) {
	r, mem := memRepo(t)
	mem.Add(testID(1))

	ok, err := r.HasObject(context.Background(), testID(1))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.HasObject(context.Background(), testID(2))
	require.NoError(t, err)
	require.False(t, ok)

	_, err = r.HasObject(context.Background(), "zz")
	require.ErrorIs(t, err, object.ErrInvalidHash)
}

func TestReloadShallow(t *testing.T) {
	r, mem := memRepo(t)
	ctx := context.Background()
	root, left, right, _ := diamond(mem)

	require.False(t, r.IsShallow())
	base, err := r.MergeBase(ctx, left, right)
	require.NoError(t, err)
	require.Equal(t, root, base)

	shallow := strings.Join([]string{string(right), string(left)}, "\n") + "\n"
	require.NoError(t, os.WriteFile(r.ShallowFile(), []byte(shallow), 0o644))
	require.NoError(t, r.ReloadShallow())

	require.True(t, r.IsShallow())
	require.Equal(t, []object.Hash{left, right}, r.ShallowCommits())
	require.Zero(t, r.bases.len())

	// The boundary hides root, so the cached answer must not come back.
	_, err = r.MergeBase(ctx, left, right)
	require.ErrorIs(t, err, graph.ErrNoCommonAncestor)

	require.NoError(t, os.Remove(r.ShallowFile()))
	require.NoError(t, r.ReloadShallow())
	require.False(t, r.IsShallow())
	base, err = r.MergeBase(ctx, left, right)
	require.NoError(t, err)
	require.Equal(t, root, base)
}

func TestReloadShallow_Malformed(t *testing.T) {
	r, _ := memRepo(t)
	require.NoError(t, os.WriteFile(r.ShallowFile(), []byte("not-a-hash\n"), 0o644))
	err := r.ReloadShallow()
	require.Error(t, err)
	require.False(t, r.IsShallow())
}
