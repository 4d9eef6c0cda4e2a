package refs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	for _, tc := range []struct {
		name  Name
		valid bool
	}{
		{"HEAD", true},
		{"refs/heads/main", true},
		{"refs/heads/feature/x-1", true},
		{"refs/tags/v1.0", true},
		{"refs/remotes/origin/HEAD", true},
		{"refs/", false},
		{"refs", false},
		{"main", false},
		{"heads/main", false},
		{"refs/heads/", false},
		{"refs//heads", false},
		{"refs/heads/a..b", false},
		{"refs/heads/.hidden", false},
		{"refs/heads/x.lock", false},
		{"refs/heads/x.lock/y", false},
		{"refs/heads/x.", false},
		{"refs/heads/a@{1}", false},
		{"refs/heads/a b", false},
		{"refs/heads/a~1", false},
		{"refs/heads/a^", false},
		{"refs/heads/a:b", false},
		{"refs/heads/a?", false},
		{"refs/heads/a*", false},
		{"refs/heads/a[b", false},
		{`refs/heads/a\b`, false},
		{"refs/heads/a\x01", false},
		{"/refs/heads/main", false},
	} {
		t.Run(string(tc.name), func(t *testing.T) {
			err := ValidateName(tc.name)
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidName)
			}
		})
	}
}

func TestNameHelpers(t *testing.T) {
	require.Equal(t, Name("refs/heads/main"), BranchName("main"))
	require.Equal(t, Name("refs/tags/v1"), TagName("v1"))

	branch, ok := BranchName("a/b").Branch()
	require.True(t, ok)
	require.Equal(t, "a/b", branch)
	_, ok = TagName("v1").Branch()
	require.False(t, ok)

	require.Equal(t, "v1", TagName("v1").Short())
	require.Equal(t, "origin/main", Name("refs/remotes/origin/main").Short())
	require.Equal(t, "HEAD", HEAD.Short())
}

func TestConflicts(t *testing.T) {
	require.True(t, conflicts("refs/heads/a", "refs/heads/a/b"))
	require.True(t, conflicts("refs/heads/a/b", "refs/heads/a"))
	require.False(t, conflicts("refs/heads/a", "refs/heads/ab"))
	require.False(t, conflicts("refs/heads/a", "refs/heads/a"))
}
