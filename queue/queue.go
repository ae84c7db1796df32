// Package queue provides the bounded priority queues HNSW and IVFFlat use
// to track search candidates and results.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// PriorityQueueItem represents an item in the priority queue: an element
// id paired with its distance to the current query.
type PriorityQueueItem struct {
	ID       uint64  // ID is the element/tuple identifier.
	Distance float32 // Distance is the priority of the item in the queue.
	Index    int     // Index is the item's heap position, maintained by the heap.Interface methods.
}

// PriorityQueue implements heap.Interface and holds PriorityQueueItems.
// Order selects ascending (min-heap, Order=false) or descending
// (max-heap, Order=true) ordering. HNSW's beam search needs both: a
// min-heap of candidates still to expand and a max-heap of the current
// best results.
type PriorityQueue struct {
	Order bool                 // Order specifies whether the priority queue is in ascending or descending order.
	Items []*PriorityQueueItem // Items contains the elements of the priority queue.
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.Items) }

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	if !pq.Order {
		return pq.Items[i].Distance < pq.Items[j].Distance
	}
	return pq.Items[i].Distance > pq.Items[j].Distance
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.Items[i], pq.Items[j] = pq.Items[j], pq.Items[i]
	pq.Items[i].Index, pq.Items[j].Index = i, j
}

// Push adds x to the priority queue.
func (pq *PriorityQueue) Push(x any) {
	item, _ := x.(*PriorityQueueItem)
	item.Index = len(pq.Items)
	pq.Items = append(pq.Items, item)
}

// Pop removes and returns the top element from the priority queue.
func (pq *PriorityQueue) Pop() any {
	if len(pq.Items) == 0 {
		return nil
	}

	old := pq.Items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	pq.Items = old[:n-1]

	return item
}

// Top returns the top element of the priority queue without removing it,
// or nil if the queue is empty.
func (pq *PriorityQueue) Top() *PriorityQueueItem {
	if len(pq.Items) == 0 {
		return nil
	}
	return pq.Items[0]
}

// NewMin returns an initialized, empty ascending (min-heap) queue.
func NewMin() *PriorityQueue {
	pq := &PriorityQueue{Order: false}
	heap.Init(pq)
	return pq
}

// NewMax returns an initialized, empty descending (max-heap) queue.
func NewMax() *PriorityQueue {
	pq := &PriorityQueue{Order: true}
	heap.Init(pq)
	return pq
}

// Bounded is a fixed-capacity top-k selector backed by a max-heap:
// offering past capacity evicts the current farthest item, giving
// O(log k) running top-k selection. Used by IVFFlat's list scan and
// HNSW's brute-force fallback search.
type Bounded struct {
	cap int
	pq  *PriorityQueue
}

// NewBounded creates a Bounded top-k selector with the given capacity.
func NewBounded(k int) *Bounded {
	return &Bounded{cap: k, pq: NewMax()}
}

// Offer considers (id, dist) for inclusion in the top-k set.
func (b *Bounded) Offer(id uint64, dist float32) {
	if b.pq.Len() < b.cap {
		heap.Push(b.pq, &PriorityQueueItem{ID: id, Distance: dist})
		return
	}
	if top := b.pq.Top(); top != nil && dist < top.Distance {
		heap.Pop(b.pq)
		heap.Push(b.pq, &PriorityQueueItem{ID: id, Distance: dist})
	}
}

// Len returns the number of items currently held.
func (b *Bounded) Len() int { return b.pq.Len() }

// Drain empties the selector and returns its contents in ascending
// distance order.
func (b *Bounded) Drain() []PriorityQueueItem {
	out := make([]PriorityQueueItem, b.pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		item := heap.Pop(b.pq).(*PriorityQueueItem)
		out[i] = *item
	}
	return out
}
