package fixed

import "ember/kernel"

// DelimiterWaiter is a predicate that scans a container from its first item until it finds the
// delimiter or has passed max items. Items already scanned are not looked at again, so each
// poll only examines what arrived since the previous one.
//
// Typical use is assembling lines from a byte stream:
//
//	w := fixed.NewDelimiterWaiter[byte](&rx, '\n', rx.Cap())
//	w.Wait(c, kernel.Forever)
//	line := rx.Items()[:w.Count()]
type DelimiterWaiter[T comparable] struct {
	src   Indexed[T]
	delim T
	max   int
	seen  int
	found bool
}

// NewDelimiterWaiter returns a waiter over src for delim, giving up after max items.
func NewDelimiterWaiter[T comparable](src Indexed[T], delim T, max int) *DelimiterWaiter[T] {
	if max < 1 {
		kernel.Abort(kernel.TrapInvalidArgument, "delimiter scan limit %d", max)
	}
	return &DelimiterWaiter[T]{src: src, delim: delim, max: max}
}

// Ready implements kernel.Predicate.
func (w *DelimiterWaiter[T]) Ready() bool {
	if w.found {
		return true
	}
	for w.seen < w.src.Len() && w.seen < w.max {
		if w.src.At(w.seen) == w.delim {
			w.found = true
			return true
		}
		w.seen++
	}
	return w.seen >= w.max
}

// Wait suspends the task until the delimiter is found or max items were scanned.
func (w *DelimiterWaiter[T]) Wait(c *kernel.Context, timeout kernel.Timeout) kernel.WaitResult {
	return c.Wait(w, timeout)
}

// Count returns the number of items before the delimiter.
func (w *DelimiterWaiter[T]) Count() int { return w.seen }

// CountWithDelimiter returns Count plus the delimiter itself, if it was found.
func (w *DelimiterWaiter[T]) CountWithDelimiter() int {
	if w.found {
		return w.seen + 1
	}
	return w.seen
}

// Found reports whether the delimiter was seen.
func (w *DelimiterWaiter[T]) Found() bool { return w.found }

// MaxReached reports whether the scan stopped at the limit without a delimiter.
func (w *DelimiterWaiter[T]) MaxReached() bool { return !w.found && w.seen >= w.max }

// Reset restarts the scan from the first item, after the consumer removed what it scanned.
func (w *DelimiterWaiter[T]) Reset() {
	w.seen = 0
	w.found = false
}
