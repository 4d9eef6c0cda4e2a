package refs

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/refgraph/pkg/object"
)

const packedRefsHeader = "# pack-refs with: peeled fully-peeled sorted \n"

func (s *Store) packedPath() string {
	return filepath.Join(s.dir, packedRefsFile)
}

// readPacked parses packed-refs into name -> id. Peeled lines ("^<id>")
// describe annotated tag targets and are not needed here. A missing file
// yields an empty map.
func (s *Store) readPacked() (map[Name]object.Hash, error) {
	data, err := os.ReadFile(s.packedPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[Name]object.Hash{}, nil
		}
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	return s.parsePacked(data)
}

func (s *Store) parsePacked(data []byte) (map[Name]object.Hash, error) {
	out := make(map[Name]object.Hash)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "^") {
			continue
		}
		hex, name, ok := strings.Cut(text, " ")
		if !ok {
			return nil, fmt.Errorf("%w: packed-refs line %d: missing name", ErrCorruptRef, line)
		}
		id, err := object.ParseHash(s.format, hex)
		if err != nil {
			return nil, fmt.Errorf("%w: packed-refs line %d: %w", ErrCorruptRef, line, err)
		}
		out[Name(name)] = id
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	return out, nil
}

// encodePacked renders packed-refs content. Peeled lines are dropped: the
// core never peels tags, so rewriting loses nothing it relies on.
func encodePacked(refs map[Name]object.Hash) []byte {
	names := make([]Name, 0, len(refs))
	for n := range refs {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	var buf bytes.Buffer
	buf.WriteString(packedRefsHeader)
	for _, n := range names {
		fmt.Fprintf(&buf, "%s %s\n", refs[n], n)
	}
	return buf.Bytes()
}
