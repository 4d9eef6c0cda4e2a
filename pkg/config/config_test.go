package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/refgraph/pkg/object"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, object.SHA1, cfg.ObjectFormat())
}

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
[core]
object_format = "sha256"

[refs]
lock_timeout = "750ms"
log_all_ref_updates = false

[user]
name = "Ada"
email = "ada@example.com"

[walk]
cache_size = 0
`))
	require.NoError(t, err)
	require.Equal(t, object.SHA256, cfg.ObjectFormat())
	require.Equal(t, 750*time.Millisecond, cfg.Refs.LockTimeout)
	require.False(t, cfg.Refs.LogAllRefUpdates)
	require.Equal(t, "Ada", cfg.User.Name)
	require.Zero(t, cfg.Walk.CacheSize)
	// Untouched keys keep their defaults.
	require.Equal(t, 5, cfg.Refs.MaxSymrefDepth)
	require.Equal(t, "main", cfg.Init.DefaultBranch)
}

func TestParse_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("REFGRAPH_REFS_LOCK_TIMEOUT", "3s")
	t.Setenv("REFGRAPH_INIT_DEFAULT_BRANCH", "trunk")
	t.Setenv("REFGRAPH_LOG_LEVEL", "debug")

	cfg, err := Parse(strings.NewReader("[refs]\nlock_timeout = \"1s\"\n"))
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.Refs.LockTimeout)
	require.Equal(t, "trunk", cfg.Init.DefaultBranch)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_Invalid(t *testing.T) {
	for _, tc := range []struct {
		desc string
		toml string
	}{
		{"syntax", "[core\n"},
		{"unknown key", "[core]\nobject_fmt = \"sha1\"\n"},
		{"unknown format", "[core]\nobject_format = \"md5\"\n"},
		{"zero symref depth", "[refs]\nmax_symref_depth = 0\n"},
		{"negative timeout", "[refs]\nlock_timeout = \"-1s\"\n"},
		{"bad duration", "[refs]\nlock_timeout = \"soon\"\n"},
		{"zero max steps", "[walk]\nmax_steps = 0\n"},
		{"negative cache", "[walk]\ncache_size = -1\n"},
		{"branch with space", "[init]\ndefault_branch = \"my branch\"\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"bad format", "[log]\nformat = \"xml\"\n"},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.toml))
			require.Error(t, err)
		})
	}

	_, err := Parse(strings.NewReader("[walk]\nmax_steps = 0\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Core.Bare = true
	cfg.Refs.LockTimeout = 1500 * time.Millisecond
	cfg.User = User{Name: "Grace", Email: "grace@example.com"}
	cfg.Walk.UseGraphIndex = false

	require.NoError(t, Save(dir, cfg))
	got, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, cfg, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files left behind")
	require.Equal(t, FileName, entries[0].Name())
}

func TestSave_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Core.ObjectFormat = "md5"
	require.ErrorIs(t, Save(dir, cfg), ErrInvalidConfig)
	_, err := os.Stat(filepath.Join(dir, FileName))
	require.True(t, os.IsNotExist(err))
}
