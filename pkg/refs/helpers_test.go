package refs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/refgraph/pkg/object"
)

func testID(n int) object.Hash {
	return object.Hash(fmt.Sprintf("%040x", n))
}

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("", 2*3600))

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return testClock }),
		WithActor(Signature{Name: "Test User", Email: "test@example.com"}),
	}, opts...)
	return NewStore(t.TempDir(), opts...)
}

func mustApply(t *testing.T, s *Store, edits ...Edit) []Reference {
	t.Helper()
	out, err := s.Apply(context.Background(), edits)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return out
}

func mustPeel(t *testing.T, s *Store, name Name) object.Hash {
	t.Helper()
	id, err := s.Peel(name)
	if err != nil {
		t.Fatalf("Peel(%s): %v", name, err)
	}
	return id
}

func writeLoose(t *testing.T, s *Store, name Name, content string) {
	t.Helper()
	path := s.refPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// lockfiles returns every *.lock file below the store directory.
func lockfiles(t *testing.T, s *Store) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if strings.HasSuffix(path, ".lock") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return out
}
