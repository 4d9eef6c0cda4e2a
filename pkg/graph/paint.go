package graph

import (
	"context"

	"github.com/odvcencio/refgraph/pkg/object"
)

// colorSet is a bitset with one bit per merge-base input.
type colorSet []uint64

func newColorSet(n int) colorSet { return make(colorSet, (n+63)/64) }

func (c colorSet) set(i int) { c[i/64] |= 1 << (uint(i) % 64) }

// covers reports whether every bit of o is set in c.
func (c colorSet) covers(o colorSet) bool {
	for i := range c {
		if c[i]&o[i] != o[i] {
			return false
		}
	}
	return true
}

func (c colorSet) merge(o colorSet) {
	for i := range c {
		c[i] |= o[i]
	}
}

type paintState struct {
	node   object.CommitNode
	colors colorSet
	stale  bool
	result bool
	queued int // entries for this commit currently in the queue
}

// painter propagates one color per input commit down the graph. A commit
// holding every color is a common ancestor; everything below it is marked
// stale, and painting stops once only stale commits are queued.
type painter struct {
	ctx      context.Context
	m        *MergeBaser
	all      colorSet
	states   map[object.Hash]*paintState
	queue    frontier
	nonStale int
	steps    int
}

func newPainter(ctx context.Context, m *MergeBaser, colors int) *painter {
	all := newColorSet(colors)
	for i := 0; i < colors; i++ {
		all.set(i)
	}
	return &painter{
		ctx:    ctx,
		m:      m,
		all:    all,
		states: make(map[object.Hash]*paintState),
	}
}

func (p *painter) state(id object.Hash) (*paintState, error) {
	if st, ok := p.states[id]; ok {
		return st, nil
	}
	node, err := resolveNode(p.ctx, p.m.resolver, p.m.boundary, id)
	if err != nil {
		return nil, err
	}
	st := &paintState{node: node, colors: make(colorSet, len(p.all))}
	p.states[id] = st
	return st, nil
}

func (p *painter) push(st *paintState) {
	st.queued++
	if !st.stale {
		p.nonStale++
	}
	p.queue.push(st.node)
}

func (p *painter) markStale(st *paintState) {
	if st.stale {
		return
	}
	st.stale = true
	p.nonStale -= st.queued
}

// paint returns the common ancestors found that are not below another
// one. The result may still hold candidates that are ancestors of others
// when the frontier order was not topological.
func (p *painter) paint(one object.Hash, others []object.Hash) ([]object.CommitNode, error) {
	tips := append([]object.Hash{one}, others...)
	seeded := make(map[object.Hash]bool, len(tips))
	var seeds []*paintState
	for i, id := range tips {
		st, err := p.state(id)
		if err != nil {
			return nil, err
		}
		st.colors.set(i)
		if !seeded[id] {
			seeded[id] = true
			seeds = append(seeds, st)
		}
	}
	for _, st := range seeds {
		p.push(st)
	}

	var results []*paintState
	for p.nonStale > 0 {
		if err := p.ctx.Err(); err != nil {
			return nil, contextError(err)
		}
		p.steps++
		if p.steps > p.m.maxSteps {
			return nil, traversalLimitError(p.m.maxSteps)
		}

		node := p.queue.pop()
		st := p.states[node.ID]
		st.queued--
		if !st.stale {
			p.nonStale--
		}

		colors := append(colorSet(nil), st.colors...)
		stale := st.stale
		if st.colors.covers(p.all) {
			if !st.result {
				st.result = true
				results = append(results, st)
			}
			stale = true
		}

		for _, parent := range node.Parents {
			if parent == "" {
				continue
			}
			ps, err := p.state(parent)
			if err != nil {
				return nil, err
			}
			if ps.colors.covers(colors) && (ps.stale || !stale) {
				continue
			}
			ps.colors.merge(colors)
			if stale {
				p.markStale(ps)
			}
			p.push(ps)
		}
	}

	out := make([]object.CommitNode, 0, len(results))
	for _, st := range results {
		if !st.stale {
			out = append(out, st.node)
		}
	}
	return out, nil
}
