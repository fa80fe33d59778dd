package fixed

import "ember/kernel"

// Buffer is a length-tracked array over caller-provided storage.
//
// Every place below the capacity can be read and written with At and Set; the append, insert
// and remove operations keep the items packed at the front and maintain Len.
type Buffer[T any] struct {
	buf []T
	n   int
}

// NewBuffer returns an empty buffer using storage. The capacity is len(storage).
func NewBuffer[T any](storage []T) Buffer[T] {
	mustStorage(len(storage))
	return Buffer[T]{buf: storage}
}

// Len returns the number of packed items.
func (b *Buffer[T]) Len() int { return b.n }

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int { return len(b.buf) }

// Free returns the number of places after the packed items.
func (b *Buffer[T]) Free() int { return len(b.buf) - b.n }

// Items returns the packed items. The slice aliases the storage.
func (b *Buffer[T]) Items() []T { return b.buf[:b.n] }

// Clear drops every item.
func (b *Buffer[T]) Clear() {
	clear(b.buf[:b.n])
	b.n = 0
}

// At returns the place i. Reading outside the capacity traps.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= len(b.buf) {
		outOfRange(i, len(b.buf))
	}
	return b.buf[i]
}

// Set writes the place i. Writing outside the capacity traps.
func (b *Buffer[T]) Set(i int, v T) {
	if i < 0 || i >= len(b.buf) {
		outOfRange(i, len(b.buf))
	}
	b.buf[i] = v
}

// TryAppend adds v after the packed items, or returns Full.
func (b *Buffer[T]) TryAppend(v T) Status {
	if b.n == len(b.buf) {
		return Full
	}
	b.buf[b.n] = v
	b.n++
	return OK
}

// Append waits up to timeout ticks for a free place and adds v after the packed items.
func (b *Buffer[T]) Append(c *kernel.Context, v T, timeout kernel.Timeout) kernel.WaitResult {
	if WaitSpace(c, b, timeout) != kernel.Satisfied {
		return kernel.TimedOut
	}
	b.TryAppend(v)
	return kernel.Satisfied
}

// AppendSlice waits up to timeout ticks until all of vs fits and appends it.
func (b *Buffer[T]) AppendSlice(c *kernel.Context, vs []T, timeout kernel.Timeout) kernel.WaitResult {
	if WaitSpaceCount(c, b, len(vs), timeout) != kernel.Satisfied {
		return kernel.TimedOut
	}
	b.n += copy(b.buf[b.n:], vs)
	return kernel.Satisfied
}

// Insert waits up to timeout ticks for a free place and inserts v at pos, shifting the items
// behind it. pos may equal Len.
func (b *Buffer[T]) Insert(c *kernel.Context, pos int, v T, timeout kernel.Timeout) kernel.WaitResult {
	b.checkCap(pos, 1)
	if WaitSpace(c, b, timeout) != kernel.Satisfied {
		return kernel.TimedOut
	}
	b.checkPos(pos)
	copy(b.buf[pos+1:b.n+1], b.buf[pos:b.n])
	b.buf[pos] = v
	b.n++
	return kernel.Satisfied
}

// InsertSlice waits up to timeout ticks until all of vs fits and inserts it at pos.
func (b *Buffer[T]) InsertSlice(c *kernel.Context, pos int, vs []T, timeout kernel.Timeout) kernel.WaitResult {
	b.checkCap(pos, len(vs))
	if WaitSpaceCount(c, b, len(vs), timeout) != kernel.Satisfied {
		return kernel.TimedOut
	}
	b.checkPos(pos)
	copy(b.buf[pos+len(vs):b.n+len(vs)], b.buf[pos:b.n])
	copy(b.buf[pos:], vs)
	b.n += len(vs)
	return kernel.Satisfied
}

// Remove waits up to timeout ticks until an item exists at pos and removes it.
func (b *Buffer[T]) Remove(c *kernel.Context, pos int, timeout kernel.Timeout) kernel.WaitResult {
	return b.RemoveN(c, pos, 1, timeout)
}

// RemoveN waits up to timeout ticks until count items exist from pos on and removes them,
// closing the gap.
func (b *Buffer[T]) RemoveN(c *kernel.Context, pos, count int, timeout kernel.Timeout) kernel.WaitResult {
	if pos < 0 || count < 0 || pos+count > len(b.buf) {
		kernel.Abort(kernel.TrapIndexRange, "remove %d items at %d, capacity %d", count, pos, len(b.buf))
	}
	if WaitItemCount(c, b, pos+count, timeout) != kernel.Satisfied {
		return kernel.TimedOut
	}
	copy(b.buf[pos:], b.buf[pos+count:b.n])
	clear(b.buf[b.n-count : b.n])
	b.n -= count
	return kernel.Satisfied
}

// checkCap traps when count items at pos could never fit, whatever the buffer holds.
func (b *Buffer[T]) checkCap(pos, count int) {
	if pos < 0 || pos+count > len(b.buf) {
		kernel.Abort(kernel.TrapIndexRange, "insert %d items at %d, capacity %d", count, pos, len(b.buf))
	}
}

func (b *Buffer[T]) checkPos(pos int) {
	if pos < 0 || pos > b.n {
		outOfRange(pos, b.n+1)
	}
}
