package object

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ShallowBoundary is the set of commits whose parents are not available
// locally. Traversal treats its members as roots. A boundary is never
// mutated after construction.
type ShallowBoundary struct {
	ids map[Hash]struct{}
}

// NewShallowBoundary builds a boundary from the given ids.
func NewShallowBoundary(ids ...Hash) ShallowBoundary {
	if len(ids) == 0 {
		return ShallowBoundary{}
	}
	set := make(map[Hash]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return ShallowBoundary{ids: set}
}

// Contains reports whether id is a shallow commit.
func (b ShallowBoundary) Contains(id Hash) bool {
	_, ok := b.ids[id]
	return ok
}

// Len returns the number of shallow commits.
func (b ShallowBoundary) Len() int { return len(b.ids) }

// IDs returns the shallow commits in ascending order.
func (b ShallowBoundary) IDs() []Hash {
	out := make([]Hash, 0, len(b.ids))
	for id := range b.ids {
		out = append(out, id)
	}
	return SortHashes(out)
}

// ParseShallow reads newline-delimited hex ids, one shallow commit per line.
// Blank lines are ignored; any other malformed line is an error.
func ParseShallow(r io.Reader, f Format) (ShallowBoundary, error) {
	var ids []Hash
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, err := ParseHash(f, text)
		if err != nil {
			return ShallowBoundary{}, fmt.Errorf("parse shallow: line %d: %w", line, err)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return ShallowBoundary{}, fmt.Errorf("parse shallow: %w", err)
	}
	return NewShallowBoundary(ids...), nil
}

// LoadShallowFile reads a shallow file. A missing file yields an empty
// boundary.
func LoadShallowFile(path string, f Format) (ShallowBoundary, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ShallowBoundary{}, nil
		}
		return ShallowBoundary{}, fmt.Errorf("load shallow file: %w", err)
	}
	defer file.Close()
	return ParseShallow(file, f)
}
