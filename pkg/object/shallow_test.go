package object

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseShallow(t *testing.T) {
	a := strings.Repeat("a", 40)
	b := strings.Repeat("b", 40)

	boundary, err := ParseShallow(strings.NewReader(b+"\n\n"+a+"\n"), SHA1)
	require.NoError(t, err)
	require.Equal(t, 2, boundary.Len())
	require.True(t, boundary.Contains(Hash(a)))
	require.True(t, boundary.Contains(Hash(b)))
	require.False(t, boundary.Contains(Hash(strings.Repeat("c", 40))))
	require.Equal(t, []Hash{Hash(a), Hash(b)}, boundary.IDs())
}

func TestParseShallow_RejectsMalformedLine(t *testing.T) {
	_, err := ParseShallow(strings.NewReader("not-a-hash\n"), SHA1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidHash))
	require.Contains(t, err.Error(), "line 1")
}

func TestLoadShallowFile(t *testing.T) {
	dir := t.TempDir()

	boundary, err := LoadShallowFile(filepath.Join(dir, "shallow"), SHA1)
	require.NoError(t, err)
	require.Zero(t, boundary.Len())

	id := strings.Repeat("1", 40)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shallow"), []byte(id+"\n"), 0o644))
	boundary, err = LoadShallowFile(filepath.Join(dir, "shallow"), SHA1)
	require.NoError(t, err)
	require.True(t, boundary.Contains(Hash(id)))
}

func TestZeroBoundaryIsEmpty(t *testing.T) {
	var b ShallowBoundary
	require.False(t, b.Contains("anything"))
	require.Empty(t, b.IDs())
}
