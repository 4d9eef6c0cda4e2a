package object

import (
	"context"
	"fmt"
	"sync"
)

// MemResolver is an in-memory Resolver. It is useful for embedders that
// already hold the commit graph and for tests.
type MemResolver struct {
	mu      sync.RWMutex
	commits map[Hash]CommitNode
}

// NewMemResolver returns an empty MemResolver.
func NewMemResolver() *MemResolver {
	return &MemResolver{commits: make(map[Hash]CommitNode)}
}

// Add stores a commit with the given parents, replacing any previous entry.
func (m *MemResolver) Add(id Hash, parents ...Hash) {
	m.Put(CommitNode{ID: id, Parents: parents})
}

// Put stores node as-is, including its generation number.
func (m *MemResolver) Put(node CommitNode) {
	node.Parents = append([]Hash(nil), node.Parents...)
	m.mu.Lock()
	m.commits[node.ID] = node
	m.mu.Unlock()
}

// Len returns the number of stored commits.
func (m *MemResolver) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.commits)
}

func (m *MemResolver) Resolve(_ context.Context, id Hash) (CommitNode, error) {
	m.mu.RLock()
	node, ok := m.commits[id]
	m.mu.RUnlock()
	if !ok {
		return CommitNode{}, fmt.Errorf("resolve %s: %w", id, ErrObjectNotFound)
	}
	node.Parents = append([]Hash(nil), node.Parents...)
	return node, nil
}

func (m *MemResolver) Exists(_ context.Context, id Hash) (bool, error) {
	m.mu.RLock()
	_, ok := m.commits[id]
	m.mu.RUnlock()
	return ok, nil
}
