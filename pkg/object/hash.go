package object

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidHash is returned when a string is not a full-width hex object
// id of the expected format.
var ErrInvalidHash = errors.New("invalid object id")

// Hash is a lowercase hex-encoded object id. Lowercase hex sorts in the same
// order as the underlying bytes, so plain string comparison is the byte
// order used for deterministic tie-breaks.
type Hash string

// String returns the hex representation of h.
func (h Hash) String() string { return string(h) }

// IsZero reports whether h is empty or consists only of zeroes.
func (h Hash) IsZero() bool {
	return strings.Trim(string(h), "0") == ""
}

// Short returns an abbreviated form of h for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// Compare orders two hashes by their byte value.
func Compare(a, b Hash) int {
	return strings.Compare(string(a), string(b))
}

// Format describes the repository-wide hash algorithm.
type Format struct {
	Name string
	Size int // raw digest size in bytes
}

var (
	SHA1   = Format{Name: "sha1", Size: 20}
	SHA256 = Format{Name: "sha256", Size: 32}
)

// HexLen returns the length of a hex-encoded id in this format.
func (f Format) HexLen() int { return f.Size * 2 }

// Zero returns the all-zero id, used to mark a missing value in reflogs.
func (f Format) Zero() Hash {
	return Hash(strings.Repeat("0", f.HexLen()))
}

func (f Format) String() string { return f.Name }

// ParseFormat maps a configured format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	default:
		return Format{}, fmt.Errorf("unknown object format %q", name)
	}
}

// ParseHash validates s as a full-width hex id of format f. Uppercase hex
// digits are accepted and normalised.
func ParseHash(f Format, s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != f.HexLen() {
		return "", fmt.Errorf("%w: %q is not a %s id", ErrInvalidHash, s, f.Name)
	}
	s = strings.ToLower(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: %q", ErrInvalidHash, s)
		}
	}
	return Hash(s), nil
}

// Validate checks that h is a well-formed id of format f.
func (f Format) Validate(h Hash) error {
	_, err := ParseHash(f, string(h))
	return err
}

// SortHashes sorts ids in ascending byte order and removes duplicates.
func SortHashes(ids []Hash) []Hash {
	if len(ids) == 0 {
		return ids
	}
	out := append([]Hash(nil), ids...)
	slices.Sort(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
