package fixed

import "ember/kernel"

// Queue is a FIFO ring over caller-provided storage.
type Queue[T any] struct {
	buf  []T
	head int
	size int
}

// NewQueue returns an empty queue using storage as its ring. The capacity is len(storage).
func NewQueue[T any](storage []T) Queue[T] {
	mustStorage(len(storage))
	return Queue[T]{buf: storage}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return q.size }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return len(q.buf) }

// Free returns the number of items that can be pushed without blocking.
func (q *Queue[T]) Free() int { return len(q.buf) - q.size }

// Clear drops every item.
func (q *Queue[T]) Clear() {
	var zero T
	for i := 0; i < q.size; i++ {
		q.buf[q.slot(i)] = zero
	}
	q.head, q.size = 0, 0
}

func (q *Queue[T]) slot(i int) int {
	s := q.head + i
	if s >= len(q.buf) {
		s -= len(q.buf)
	}
	return s
}

// At returns the item i places behind the head. Index 0 is the next item to pop.
func (q *Queue[T]) At(i int) T {
	if i < 0 || i >= q.size {
		outOfRange(i, q.size)
	}
	return q.buf[q.slot(i)]
}

// Peek returns the head item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if q.size == 0 {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

// TryPush appends v at the tail, or returns Full.
func (q *Queue[T]) TryPush(v T) Status {
	if q.size == len(q.buf) {
		return Full
	}
	q.buf[q.slot(q.size)] = v
	q.size++
	return OK
}

// TryPop removes the head item, or returns Empty.
func (q *Queue[T]) TryPop() (T, Status) {
	var zero T
	if q.size == 0 {
		return zero, Empty
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = q.slot(1)
	q.size--
	return v, OK
}

// Push waits up to timeout ticks for a free place and appends v.
func (q *Queue[T]) Push(c *kernel.Context, v T, timeout kernel.Timeout) kernel.WaitResult {
	if WaitSpace(c, q, timeout) != kernel.Satisfied {
		return kernel.TimedOut
	}
	q.TryPush(v)
	return kernel.Satisfied
}

// Pop waits up to timeout ticks for an item and removes it.
func (q *Queue[T]) Pop(c *kernel.Context, timeout kernel.Timeout) (T, kernel.WaitResult) {
	if WaitItems(c, q, timeout) != kernel.Satisfied {
		var zero T
		return zero, kernel.TimedOut
	}
	v, _ := q.TryPop()
	return v, kernel.Satisfied
}

// Contiguous returns the run of items starting at the head that is contiguous in storage.
// The slice aliases the ring and stays valid until the next push or Discard.
func (q *Queue[T]) Contiguous() []T {
	end := q.head + q.size
	if end > len(q.buf) {
		end = len(q.buf)
	}
	return q.buf[q.head:end]
}

// Discard drops n items from the head, typically after consuming Contiguous.
func (q *Queue[T]) Discard(n int) {
	if n < 0 || n > q.size {
		kernel.Abort(kernel.TrapIndexRange, "discard %d of %d items", n, q.size)
	}
	var zero T
	for i := 0; i < n; i++ {
		q.buf[q.slot(i)] = zero
	}
	q.head = q.slot(n)
	q.size -= n
	if q.size == 0 {
		q.head = 0
	}
}
