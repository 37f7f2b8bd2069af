package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/container"
)

func TestPriorityQueueOrder(t *testing.T) {
	pq := container.NewPriorityQueue[string]()
	pq.Push("b", 2)
	pq.Push("a", 1)
	pq.Push("c", 3)
	pq.Heapify()
	assert.Equal(t, 3, pq.Len())

	v, p := pq.HeapPop()
	assert.Equal(t, "a", v)
	assert.Equal(t, 1.0, p)
	v, _ = pq.HeapPop()
	assert.Equal(t, "b", v)
	v, _ = pq.HeapPop()
	assert.Equal(t, "c", v)
	assert.Equal(t, 0, pq.Len())
}

func TestPriorityQueueHeapPush(t *testing.T) {
	pq := container.NewPriorityQueue[int]()
	pq.HeapPush(1, 5)
	pq.HeapPush(2, 1)
	pq.HeapPush(3, 3)
	assert.Equal(t, 2, pq.First())

	v, _ := pq.HeapPop()
	assert.Equal(t, 2, v)
	assert.Equal(t, 3, pq.First())
}
