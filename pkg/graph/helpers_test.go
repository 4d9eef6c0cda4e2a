package graph

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/odvcencio/refgraph/pkg/object"
)

// testGraph builds commit graphs by name. Commits must be added parents
// first.
type testGraph struct {
	t           *testing.T
	resolver    *object.MemResolver
	ids         map[string]object.Hash
	names       map[object.Hash]string
	gens        map[object.Hash]uint32
	generations bool
}

func newTestGraph(t *testing.T, generations bool) *testGraph {
	return &testGraph{
		t:           t,
		resolver:    object.NewMemResolver(),
		ids:         make(map[string]object.Hash),
		names:       make(map[object.Hash]string),
		gens:        make(map[object.Hash]uint32),
		generations: generations,
	}
}

func nameID(name string) object.Hash {
	var sum uint64 = 1469598103934665603
	for i := 0; i < len(name); i++ {
		sum ^= uint64(name[i])
		sum *= 1099511628211
	}
	return object.Hash(fmt.Sprintf("%024x%016x", len(name), sum))
}

func (g *testGraph) commit(name string, parents ...string) object.Hash {
	g.t.Helper()
	id := nameID(name)
	if _, dup := g.ids[name]; dup {
		g.t.Fatalf("commit %q added twice", name)
	}
	var gen uint32
	parentIDs := make([]object.Hash, 0, len(parents))
	for _, p := range parents {
		pid, ok := g.ids[p]
		if !ok {
			g.t.Fatalf("commit %q: unknown parent %q", name, p)
		}
		parentIDs = append(parentIDs, pid)
		gen = max(gen, g.gens[pid])
	}
	g.gens[id] = gen + 1
	g.ids[name] = id
	g.names[id] = name

	node := object.CommitNode{ID: id, Parents: parentIDs}
	if g.generations {
		node.Generation = gen + 1
	}
	g.resolver.Put(node)
	return id
}

func (g *testGraph) id(name string) object.Hash {
	g.t.Helper()
	id, ok := g.ids[name]
	if !ok {
		g.t.Fatalf("unknown commit %q", name)
	}
	return id
}

func (g *testGraph) nameList(ids []object.Hash) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.names[id])
	}
	return out
}

func (g *testGraph) baser(opts ...Option) *MergeBaser {
	return NewMergeBaser(g.resolver, object.ShallowBoundary{}, opts...)
}

// randomDAG adds n commits named c0..c{n-1}, each with up to three
// parents picked among earlier commits. Every few commits start a new
// root so some pairs are disjoint.
func randomDAG(g *testGraph, n int, seed uint64) []string {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("c%d", i)
		var parents []string
		if i > 0 && rng.IntN(8) != 0 {
			k := 1 + rng.IntN(3)
			picked := map[int]bool{}
			for j := 0; j < k; j++ {
				p := rng.IntN(i)
				if !picked[p] {
					picked[p] = true
					parents = append(parents, names[p])
				}
			}
		}
		g.commit(names[i], parents...)
	}
	return names
}

// oracleBases computes best common ancestors by brute force.
func oracleBases(g *testGraph, tips ...string) []object.Hash {
	ancestors := func(id object.Hash) map[object.Hash]bool {
		seen := map[object.Hash]bool{id: true}
		stack := []object.Hash{id}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			node, err := g.resolver.Resolve(context.Background(), cur)
			if err != nil {
				g.t.Fatalf("oracle: %v", err)
			}
			for _, p := range node.Parents {
				if !seen[p] {
					seen[p] = true
					stack = append(stack, p)
				}
			}
		}
		return seen
	}

	common := ancestors(g.id(tips[0]))
	for _, tip := range tips[1:] {
		other := ancestors(g.id(tip))
		for id := range common {
			if !other[id] {
				delete(common, id)
			}
		}
	}
	var best []object.Hash
	for c := range common {
		redundant := false
		for d := range common {
			if d != c && ancestors(d)[c] {
				redundant = true
				break
			}
		}
		if !redundant {
			best = append(best, c)
		}
	}
	return object.SortHashes(best)
}

// wrongIDResolver answers every lookup with a node stored under another id.
type wrongIDResolver struct{}

func (wrongIDResolver) Resolve(_ context.Context, id object.Hash) (object.CommitNode, error) {
	return object.CommitNode{ID: nameID("impostor")}, nil
}

func (wrongIDResolver) Exists(context.Context, object.Hash) (bool, error) { return true, nil }
