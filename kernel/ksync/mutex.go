// Package ksync provides mutual exclusion for cooperative kernel tasks.
//
// The primitives are wait predicates: a blocked task is polled by the dispatcher and resumes
// right after the resource was observed free, so the check-and-set that follows is a single
// scheduling step and needs no atomic instruction.
package ksync

import "ember/kernel"

const unowned = -1

// Mutex is a single-owner lock. The zero value is unlocked.
//
// It is not reentrant: locking a mutex the caller already holds traps.
type Mutex struct {
	owner int16
	held  bool
}

// Locked reports whether the mutex has an owner.
func (m *Mutex) Locked() bool { return m.held }

// Unlocked reports whether the mutex is free.
func (m *Mutex) Unlocked() bool { return !m.held }

// Owner returns the holding task.
func (m *Mutex) Owner() (kernel.TaskID, bool) {
	if !m.held {
		return 0, false
	}
	return kernel.TaskID(m.owner), true
}

// Lock waits until the mutex is free and takes it.
func (m *Mutex) Lock(c *kernel.Context) {
	m.LockTimeout(c, kernel.Forever)
}

// LockTimeout waits up to timeout ticks for the mutex.
func (m *Mutex) LockTimeout(c *kernel.Context, timeout kernel.Timeout) kernel.WaitResult {
	if m.held && kernel.TaskID(m.owner) == c.TaskID() {
		kernel.Abort(kernel.TrapMutexRelock, "task %d relocks its mutex", c.TaskID())
	}
	if kernel.WaitOn(c, m, (*Mutex).Unlocked, timeout) != kernel.Satisfied {
		return kernel.TimedOut
	}
	m.take(c)
	return kernel.Satisfied
}

// TryLock takes the mutex if it is free.
func (m *Mutex) TryLock(c *kernel.Context) bool {
	if m.held {
		return false
	}
	m.take(c)
	return true
}

func (m *Mutex) take(c *kernel.Context) {
	m.held = true
	m.owner = int16(c.TaskID())
}

// Unlock releases the mutex. Only the owner may unlock it.
func (m *Mutex) Unlock(c *kernel.Context) {
	if !m.held {
		kernel.Abort(kernel.TrapMutexNotOwner, "task %d unlocks a free mutex", c.TaskID())
	}
	if kernel.TaskID(m.owner) != c.TaskID() {
		kernel.Abort(kernel.TrapMutexNotOwner, "task %d unlocks mutex held by task %d", c.TaskID(), m.owner)
	}
	m.held = false
	m.owner = unowned
}

// MutexLocker holds a mutex for the lifetime of a scope.
//
//	defer ksync.LockMutex(c, &mu).Unlock()
type MutexLocker struct {
	m *Mutex
	c *kernel.Context
}

// LockMutex locks m and returns a locker that releases it.
func LockMutex(c *kernel.Context, m *Mutex) MutexLocker {
	m.Lock(c)
	return MutexLocker{m: m, c: c}
}

// Unlock releases the held mutex.
func (l MutexLocker) Unlock() {
	l.m.Unlock(l.c)
}
