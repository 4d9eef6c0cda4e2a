package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/odvcencio/refgraph/pkg/config"
	"github.com/odvcencio/refgraph/pkg/object"
)

func testID(n int) object.Hash {
	return object.Hash(fmt.Sprintf("%040x", n))
}

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memRepo initialises a repository whose objects live in the returned
// in-memory resolver.
func memRepo(t *testing.T, opts ...Option) (*Repository, *object.MemResolver) {
	t.Helper()
	mem := object.NewMemResolver()
	cfg := config.Default()
	cfg.User = config.User{Name: "Test User", Email: "test@example.com"}
	opts = append([]Option{
		WithConfig(cfg),
		WithResolver(mem),
		WithClock(func() time.Time { return testClock }),
	}, opts...)
	r, err := Init(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, mem
}

// diamond adds root <- left, root <- right, (left, right) <- merge and
// returns the ids in that order.
func diamond(mem *object.MemResolver) (root, left, right, merge object.Hash) {
	root, left, right, merge = testID(1), testID(2), testID(3), testID(4)
	mem.Add(root)
	mem.Add(left, root)
	mem.Add(right, root)
	mem.Add(merge, left, right)
	return
}

func mustCreateBranch(t *testing.T, r *Repository, name string, id object.Hash) {
	t.Helper()
	if err := r.CreateBranch(context.Background(), name, id); err != nil {
		t.Fatalf("CreateBranch(%s): %v", name, err)
	}
}
