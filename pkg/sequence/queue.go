package sequence

import "sync"

// Queue is an unbounded FIFO safe for many producers and one consumer that
// takes everything at once. Producers never block on the consumer.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	spare []T
	limit int
}

// NewQueue creates a queue. A positive limit caps the number of pending
// items; Push reports false instead of growing past it.
func NewQueue[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Push appends an item.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && len(q.items) >= q.limit {
		return false
	}
	q.items = append(q.items, item)
	return true
}

// Drain hands every pending item to fn in arrival order. Items pushed while
// fn runs are kept for the next Drain. Returns the number of drained items.
func (q *Queue[T]) Drain(fn func(T)) int {
	q.mu.Lock()
	batch := q.items
	q.items = q.spare[:0]
	q.mu.Unlock()

	for _, item := range batch {
		fn(item)
	}

	var zero T
	for i := range batch {
		batch[i] = zero
	}

	q.mu.Lock()
	q.spare = batch[:0]
	q.mu.Unlock()

	return len(batch)
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
