package collections

import "sync"

// RoundRobinQueue is an ordered set of comparable items with round-robin
// rotation: Dequeue pops the front item and immediately re-appends it at the
// back. Enqueue and Remove are idempotent, so lifecycle signals that fire
// more than once (reconnects, duplicate disconnect notifications) are safe.
type RoundRobinQueue[T comparable] struct {
	mu      sync.Mutex
	items   []T
	present map[T]struct{}
}

func NewRoundRobinQueue[T comparable]() *RoundRobinQueue[T] {
	return &RoundRobinQueue[T]{
		present: make(map[T]struct{}),
	}
}

// Enqueue appends the item if it is not already in the queue.
func (q *RoundRobinQueue[T]) Enqueue(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.present[item]; ok {
		return
	}
	q.present[item] = struct{}{}
	q.items = append(q.items, item)
}

// Dequeue returns the front item and rotates it to the back of the queue.
// The second return value is false if the queue is empty.
func (q *RoundRobinQueue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items = append(q.items[1:], item)
	return item, true
}

// Remove deletes the item from the queue wherever it sits. Removing an item
// that is not present is a no-op.
func (q *RoundRobinQueue[T]) Remove(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.present[item]; !ok {
		return
	}
	delete(q.present, item)

	for i := range q.items {
		if q.items[i] == item {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
}

// Contains returns true if the item is currently in the queue.
func (q *RoundRobinQueue[T]) Contains(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.present[item]
	return ok
}

// Len returns the number of items currently in the queue.
func (q *RoundRobinQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Snapshot returns the current queue contents in order.
func (q *RoundRobinQueue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}
