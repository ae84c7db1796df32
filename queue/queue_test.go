package queue

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

var items = []float32{0.4, 9, 0.001, 0.0534, 0.234, 2.03, 2.042, 2.532, 1.0009, 0.329, 0.193, 0.999, 0.020391, 2.0991, 1.203, 10.03, 1.039, 1.0008, 5.029, 0.789}

func TestMaxValidation(t *testing.T) {
	h := NewMax()

	for k, v := range items {
		heap.Push(h, &PriorityQueueItem{ID: uint64(k), Distance: v})
	}

	maxItem := h.Top()
	assert.Equal(t, float32(10.030000), maxItem.Distance)
	assert.Equal(t, uint64(15), maxItem.ID)
	assert.Equal(t, 20, h.Len())

	for h.Len() > 10 {
		heap.Pop(h)
	}
	assert.Equal(t, 10, h.Len())

	maxItem = h.Top()
	assert.Equal(t, float32(1.000800), maxItem.Distance)
	assert.Equal(t, uint64(17), maxItem.ID)

	for h.Len() > 1 {
		heap.Pop(h)
	}
	assert.Equal(t, 1, h.Len())

	maxItem = h.Top()
	assert.Equal(t, float32(0.001000), maxItem.Distance)
	assert.Equal(t, uint64(2), maxItem.ID)

	for h.Len() > 0 {
		heap.Pop(h)
	}
	assert.Equal(t, 0, h.Len())
}

func TestMinValidation(t *testing.T) {
	h := NewMin()

	for k, v := range items {
		heap.Push(h, &PriorityQueueItem{ID: uint64(k), Distance: v})
	}

	minItem := h.Top()
	assert.Equal(t, float32(0.001), minItem.Distance)
	assert.Equal(t, uint64(2), minItem.ID)
	assert.Equal(t, 20, h.Len())

	for h.Len() > 10 {
		heap.Pop(h)
	}
	assert.Equal(t, 10, h.Len())

	minItem = h.Top()
	assert.Equal(t, float32(1.000900), minItem.Distance)
	assert.Equal(t, uint64(8), minItem.ID)

	for h.Len() > 1 {
		heap.Pop(h)
	}
	assert.Equal(t, 1, h.Len())

	minItem = h.Top()
	assert.Equal(t, float32(10.03), minItem.Distance)
	assert.Equal(t, uint64(15), minItem.ID)

	for h.Len() > 0 {
		heap.Pop(h)
	}
	assert.Equal(t, 0, h.Len())
}

func TestBounded(t *testing.T) {
	b := NewBounded(3)
	for k, v := range items {
		b.Offer(uint64(k), v)
	}
	assert.Equal(t, 3, b.Len())

	drained := b.Drain()
	assert.Len(t, drained, 3)
	for i := 1; i < len(drained); i++ {
		assert.LessOrEqual(t, drained[i-1].Distance, drained[i].Distance)
	}
	assert.Equal(t, float32(0.001), drained[0].Distance)
}
