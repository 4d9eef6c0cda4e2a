package object

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHash(t *testing.T) {
	sha1Hex := strings.Repeat("ab", 20)
	sha256Hex := strings.Repeat("cd", 32)

	tests := []struct {
		name    string
		format  Format
		in      string
		want    Hash
		wantErr bool
	}{
		{name: "sha1", format: SHA1, in: sha1Hex, want: Hash(sha1Hex)},
		{name: "sha256", format: SHA256, in: sha256Hex, want: Hash(sha256Hex)},
		{name: "uppercase normalised", format: SHA1, in: strings.ToUpper(sha1Hex), want: Hash(sha1Hex)},
		{name: "surrounding space", format: SHA1, in: " " + sha1Hex + "\n", want: Hash(sha1Hex)},
		{name: "too short", format: SHA1, in: sha1Hex[:39], wantErr: true},
		{name: "sha256 id in sha1 repo", format: SHA1, in: sha256Hex, wantErr: true},
		{name: "non hex", format: SHA1, in: strings.Repeat("zz", 20), wantErr: true},
		{name: "empty", format: SHA1, in: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseHash(tc.format, tc.in)
			if tc.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidHash), "err = %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFormatZero(t *testing.T) {
	require.Equal(t, Hash(strings.Repeat("0", 40)), SHA1.Zero())
	require.Equal(t, Hash(strings.Repeat("0", 64)), SHA256.Zero())
	require.True(t, SHA1.Zero().IsZero())
	require.True(t, Hash("").IsZero())
	require.False(t, Hash("01").IsZero())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, SHA1, f)

	f, err = ParseFormat("SHA256")
	require.NoError(t, err)
	require.Equal(t, SHA256, f)

	_, err = ParseFormat("md5")
	require.Error(t, err)
}

func TestSortHashesDedupes(t *testing.T) {
	got := SortHashes([]Hash{"c", "a", "b", "a"})
	require.Equal(t, []Hash{"a", "b", "c"}, got)
	require.Equal(t, -1, Compare("0a", "0b"))
}
