package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/refgraph/pkg/refs"
)

func TestTags(t *testing.T) {
	r, _ := memRepo(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTag(ctx, "v1.0", testID(1), false))
	err := r.CreateTag(ctx, "v1.0", testID(2), false)
	require.ErrorIs(t, err, refs.ErrPreconditionFailed)

	require.NoError(t, r.CreateTag(ctx, "v1.0", testID(2), true))
	got, err := r.ResolveRevision("v1.0")
	require.NoError(t, err)
	require.Equal(t, testID(2), got)

	require.NoError(t, r.CreateTag(ctx, "release/2", testID(3), false))
	tags, err := r.ListTags()
	require.NoError(t, err)
	require.Equal(t, []string{"release/2", "v1.0"}, tags)

	require.NoError(t, r.DeleteTag(ctx, "v1.0"))
	err = r.DeleteTag(ctx, "v1.0")
	require.ErrorIs(t, err, refs.ErrNotFound)
}

func TestCreateTag_InvalidName(t *testing.T) {
	r, _ := memRepo(t)
	ctx := context.Background()

	for _, name := range []string{"", "bad..name", "trailing.lock", "sp ace"} {
		err := r.CreateTag(ctx, name, testID(1), false)
		require.ErrorIs(t, err, refs.ErrInvalidName, "tag %q", name)
		require.Equal(t, KindInvalidInput, KindOf(err))
	}
}

func TestResolveRevision(t *testing.T) {
	r, _ := memRepo(t)
	mustCreateBranch(t, r, "main", testID(1))
	mustCreateBranch(t, r, "v2", testID(2))
	require.NoError(t, r.CreateTag(context.Background(), "v2", testID(3), false))

	for _, tc := range []struct {
		rev  string
		want int
	}{
		{"HEAD", 1},
		{"main", 1},
		{"refs/heads/main", 1},
		{"heads/main", 1},
		{string(testID(42)), 42},
		{"v2", 3}, // tags win over branches
	} {
		got, err := r.ResolveRevision(tc.rev)
		require.NoError(t, err, tc.rev)
		require.Equal(t, testID(tc.want), got, tc.rev)
	}

	_, err := r.ResolveRevision("nope")
	require.ErrorIs(t, err, refs.ErrNotFound)
	_, err = r.ResolveRevision("")
	require.ErrorIs(t, err, refs.ErrInvalidName)
}
