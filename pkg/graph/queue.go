package graph

import (
	"container/heap"
	"math"

	"github.com/odvcencio/refgraph/pkg/object"
)

type queueItem struct {
	node object.CommitNode
	seq  uint64
}

// rank orders by generation with unknown (0) above every known value, so a
// graph without generation numbers is walked in insertion (BFS) order.
func (it queueItem) rank() uint64 {
	if it.node.Generation == 0 {
		return math.MaxUint32 + 1
	}
	return uint64(it.node.Generation)
}

type generationMaxHeap []queueItem

func (h generationMaxHeap) Len() int { return len(h) }

func (h generationMaxHeap) Less(i, j int) bool {
	ri, rj := h[i].rank(), h[j].rank()
	if ri == rj {
		return h[i].seq < h[j].seq
	}
	return ri > rj
}

func (h generationMaxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *generationMaxHeap) Push(x any) {
	*h = append(*h, x.(queueItem))
}

func (h *generationMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queueItem{}
	*h = old[:n-1]
	return item
}

// frontier is the generation-ordered priority queue shared by the walker
// and the merge-base painter.
type frontier struct {
	heap generationMaxHeap
	seq  uint64
}

func (f *frontier) push(node object.CommitNode) {
	f.seq++
	heap.Push(&f.heap, queueItem{node: node, seq: f.seq})
}

func (f *frontier) pop() object.CommitNode {
	return heap.Pop(&f.heap).(queueItem).node
}

func (f *frontier) len() int { return f.heap.Len() }
