package fixed

import "ember/kernel"

// Stack is a LIFO over caller-provided storage.
type Stack[T any] struct {
	buf  []T
	size int
}

// NewStack returns an empty stack using storage. The capacity is len(storage).
func NewStack[T any](storage []T) Stack[T] {
	mustStorage(len(storage))
	return Stack[T]{buf: storage}
}

// Len returns the number of stacked items.
func (s *Stack[T]) Len() int { return s.size }

// Cap returns the stack capacity.
func (s *Stack[T]) Cap() int { return len(s.buf) }

// Free returns the number of items that can be pushed without blocking.
func (s *Stack[T]) Free() int { return len(s.buf) - s.size }

// Clear drops every item.
func (s *Stack[T]) Clear() {
	clear(s.buf[:s.size])
	s.size = 0
}

// At returns the item i places below the top. Index 0 is the top.
func (s *Stack[T]) At(i int) T {
	if i < 0 || i >= s.size {
		outOfRange(i, s.size)
	}
	return s.buf[s.size-1-i]
}

// Top returns the top item without removing it.
func (s *Stack[T]) Top() (T, bool) {
	if s.size == 0 {
		var zero T
		return zero, false
	}
	return s.buf[s.size-1], true
}

// TryPush puts v on top, or returns Full.
func (s *Stack[T]) TryPush(v T) Status {
	if s.size == len(s.buf) {
		return Full
	}
	s.buf[s.size] = v
	s.size++
	return OK
}

// TryPop removes the top item, or returns Empty.
func (s *Stack[T]) TryPop() (T, Status) {
	var zero T
	if s.size == 0 {
		return zero, Empty
	}
	s.size--
	v := s.buf[s.size]
	s.buf[s.size] = zero
	return v, OK
}

// Push waits up to timeout ticks for a free place and puts v on top.
func (s *Stack[T]) Push(c *kernel.Context, v T, timeout kernel.Timeout) kernel.WaitResult {
	if WaitSpace(c, s, timeout) != kernel.Satisfied {
		return kernel.TimedOut
	}
	s.TryPush(v)
	return kernel.Satisfied
}

// Pop waits up to timeout ticks for an item and removes the top.
func (s *Stack[T]) Pop(c *kernel.Context, timeout kernel.Timeout) (T, kernel.WaitResult) {
	if WaitItems(c, s, timeout) != kernel.Satisfied {
		var zero T
		return zero, kernel.TimedOut
	}
	v, _ := s.TryPop()
	return v, kernel.Satisfied
}
