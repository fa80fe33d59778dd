package ksync

import "ember/kernel"

// Semaphore is a counting semaphore bounded by a maximum fixed at construction.
//
// Releasing a semaphore that is already at its maximum traps and leaves the count unchanged.
type Semaphore struct {
	count int
	max   int
}

// NewSemaphore returns a semaphore holding initial of max permits.
func NewSemaphore(initial, max int) Semaphore {
	if max < 1 || initial < 0 || initial > max {
		kernel.Abort(kernel.TrapInvalidArgument, "semaphore initial=%d max=%d", initial, max)
	}
	return Semaphore{count: initial, max: max}
}

// Count returns the available permits.
func (s *Semaphore) Count() int { return s.count }

// Max returns the permit limit.
func (s *Semaphore) Max() int { return s.max }

// Locked reports whether no permit is available.
func (s *Semaphore) Locked() bool { return s.count == 0 }

// Available reports whether a permit can be taken.
func (s *Semaphore) Available() bool { return s.count > 0 }

// Acquire waits for a permit and takes it.
func (s *Semaphore) Acquire(c *kernel.Context) {
	s.AcquireTimeout(c, kernel.Forever)
}

// AcquireTimeout waits up to timeout ticks for a permit.
func (s *Semaphore) AcquireTimeout(c *kernel.Context, timeout kernel.Timeout) kernel.WaitResult {
	if kernel.WaitOn(c, s, (*Semaphore).Available, timeout) != kernel.Satisfied {
		return kernel.TimedOut
	}
	s.count--
	return kernel.Satisfied
}

// TryAcquire takes a permit if one is available.
func (s *Semaphore) TryAcquire() bool {
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

// Release returns a permit.
func (s *Semaphore) Release() {
	if s.count >= s.max {
		kernel.Abort(kernel.TrapSemaphoreOverflow, "semaphore release above max %d", s.max)
	}
	s.count++
}

// SemaphoreLocker holds one permit for the lifetime of a scope.
type SemaphoreLocker struct {
	s *Semaphore
}

// AcquireSemaphore takes a permit from s and returns a locker that gives it back.
func AcquireSemaphore(c *kernel.Context, s *Semaphore) SemaphoreLocker {
	s.Acquire(c)
	return SemaphoreLocker{s: s}
}

// Release returns the held permit.
func (l SemaphoreLocker) Release() {
	l.s.Release()
}
