// Package memory provides the in-process FIFO backing the crawl frontier.
package memory

// Queue is an unbounded first-in first-out queue. It is owned by a single
// goroutine and is not safe for concurrent use.
type Queue[T any] struct {
	items []T
	head  int
}

// NewQueue constructs a queue pre-filled with seed in order.
func NewQueue[T any](seed ...T) *Queue[T] {
	q := &Queue[T]{items: make([]T, 0, len(seed))}
	q.items = append(q.items, seed...)
	return q
}

// Push appends v to the back of the queue.
func (q *Queue[T]) Push(v T) {
	q.items = append(q.items, v)
}

// Pop removes and returns the front element. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	if q.head >= len(q.items) {
		return v, false
	}
	v = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

// Peek returns the front element without removing it.
func (q *Queue[T]) Peek() (v T, ok bool) {
	if q.head >= len(q.items) {
		return v, false
	}
	return q.items[q.head], true
}

// Len reports the number of queued elements.
func (q *Queue[T]) Len() int {
	return len(q.items) - q.head
}
