package kernel

// Predicate is a wait condition. Ready is polled once per dispatch decision while the task
// waits, so it must be cheap and must not block or switch tasks.
type Predicate interface {
	Ready() bool
}

// PredicateFunc adapts a no-argument function to Predicate.
type PredicateFunc func() bool

// Ready calls f.
func (f PredicateFunc) Ready() bool { return f() }

// WaitResult is the outcome of a wait.
type WaitResult uint8

const (
	Satisfied WaitResult = iota
	TimedOut
)

func (r WaitResult) String() string {
	switch r {
	case Satisfied:
		return "satisfied"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Wait suspends the task until p is ready or timeout ticks elapse.
//
// A predicate that already holds returns Satisfied without switching. Otherwise the task
// waits and the dispatcher re-polls p once per turn; the task resumes with the CPU right after
// p was observed ready, so a check-and-set following Wait is a single scheduling step.
func (c *Context) Wait(p Predicate, timeout Timeout) WaitResult {
	t := c.self()
	if p.Ready() {
		return Satisfied
	}

	k := c.k
	k.stats.waits.Add(1)
	t.cond = waitCond{pred: p}
	if timeout >= 0 {
		t.cond.bounded = true
		t.cond.deadline = k.DeadlineFrom(Tick(timeout))
	}
	t.state = StateWaiting
	k.park(t)
	t.cond = waitCond{}

	if p.Ready() {
		return Satisfied
	}
	k.stats.timeouts.Add(1)
	return TimedOut
}

// WaitFunc waits until fn returns true.
func (c *Context) WaitFunc(fn func() bool, timeout Timeout) WaitResult {
	return c.Wait(PredicateFunc(fn), timeout)
}

type argPredicate[T any] struct {
	arg T
	fn  func(T) bool
}

func (p argPredicate[T]) Ready() bool { return p.fn(p.arg) }

// WaitOn waits until fn(arg) returns true. Method expressions work as fn:
//
//	kernel.WaitOn(c, &m, (*ksync.Mutex).Unlocked, kernel.Forever)
func WaitOn[T any](c *Context, arg T, fn func(T) bool, timeout Timeout) WaitResult {
	return c.Wait(argPredicate[T]{arg: arg, fn: fn}, timeout)
}

// WaitBoolTrue waits until *b is true.
func (c *Context) WaitBoolTrue(b *bool, timeout Timeout) WaitResult {
	return WaitOn(c, b, func(b *bool) bool { return *b }, timeout)
}

// WaitBoolFalse waits until *b is false.
func (c *Context) WaitBoolFalse(b *bool, timeout Timeout) WaitResult {
	return WaitOn(c, b, func(b *bool) bool { return !*b }, timeout)
}

// WaitIntZero waits until *n is zero.
func (c *Context) WaitIntZero(n *int, timeout Timeout) WaitResult {
	return WaitOn(c, n, func(n *int) bool { return *n == 0 }, timeout)
}

// WaitIntNonZero waits until *n is not zero.
func (c *Context) WaitIntNonZero(n *int, timeout Timeout) WaitResult {
	return WaitOn(c, n, func(n *int) bool { return *n != 0 }, timeout)
}
