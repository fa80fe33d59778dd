// Package fixed provides array-backed containers for cooperative kernel tasks.
//
// Containers never grow: the caller hands over the backing storage at construction and the
// capacity is its length. Blocking operations are kernel waits on the container level, so a
// producer blocked on a full container resumes in the same scheduling step in which the space
// was observed and its insert cannot be overtaken.
package fixed

import "ember/kernel"

// Status is the outcome of a non-blocking container operation.
type Status uint8

const (
	OK Status = iota
	Full
	Empty
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Full:
		return "container full"
	case Empty:
		return "container empty"
	default:
		return "unknown"
	}
}

// Container is the level view shared by Buffer, Queue and Stack.
type Container interface {
	Len() int
	Cap() int
}

// Indexed is a container whose items can be read by position.
type Indexed[T any] interface {
	Container
	At(i int) T
}

// LevelWaiter is a predicate on the fill level of a container: at least n items, or at least
// n free places.
type LevelWaiter struct {
	c     Container
	n     int
	space bool
}

// Items returns a predicate that holds once c has at least n items.
func Items(c Container, n int) LevelWaiter {
	checkLevel(c, n)
	return LevelWaiter{c: c, n: n}
}

// Space returns a predicate that holds once c has at least n free places.
func Space(c Container, n int) LevelWaiter {
	checkLevel(c, n)
	return LevelWaiter{c: c, n: n, space: true}
}

// Ready implements kernel.Predicate.
func (w LevelWaiter) Ready() bool {
	if w.space {
		return w.c.Cap()-w.c.Len() >= w.n
	}
	return w.c.Len() >= w.n
}

func checkLevel(c Container, n int) {
	if n < 0 || n > c.Cap() {
		kernel.Abort(kernel.TrapInvalidArgument, "wait level %d outside 0..%d", n, c.Cap())
	}
}

// WaitItems waits until box holds at least one item.
func WaitItems(c *kernel.Context, box Container, timeout kernel.Timeout) kernel.WaitResult {
	return c.Wait(Items(box, 1), timeout)
}

// WaitItemCount waits until box holds at least n items.
func WaitItemCount(c *kernel.Context, box Container, n int, timeout kernel.Timeout) kernel.WaitResult {
	return c.Wait(Items(box, n), timeout)
}

// WaitSpace waits until box has a free place.
func WaitSpace(c *kernel.Context, box Container, timeout kernel.Timeout) kernel.WaitResult {
	return c.Wait(Space(box, 1), timeout)
}

// WaitSpaceCount waits until box has at least n free places.
func WaitSpaceCount(c *kernel.Context, box Container, n int, timeout kernel.Timeout) kernel.WaitResult {
	return c.Wait(Space(box, n), timeout)
}

// PointerAndValue pairs a reference with a scalar so that containers of one element type can
// carry heterogeneous payloads. The container stores the pair by value and never owns Pointer.
type PointerAndValue[P any, V any] struct {
	Pointer *P
	Value   V
}

func mustStorage(n int) {
	if n == 0 {
		kernel.Abort(kernel.TrapInvalidArgument, "container without storage")
	}
}

func outOfRange(i, n int) {
	kernel.Abort(kernel.TrapIndexRange, "index %d outside 0..%d", i, n-1)
}
