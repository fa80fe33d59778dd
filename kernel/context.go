package kernel

import "runtime"

// Context provides task-local access to kernel operations.
//
// Each task slot owns one Context; the entry function receives it. Calling its blocking
// methods from anything other than the running task traps.
type Context struct {
	k  *Kernel
	id TaskID
}

// TaskID returns the current task ID.
func (c *Context) TaskID() TaskID { return c.id }

// Kernel returns the kernel the task runs on.
func (c *Context) Kernel() *Kernel { return c.k }

// Now returns the current tick.
func (c *Context) Now() Tick { return c.k.Now() }

// DeadlineFrom returns the tick at which timeout ticks from now elapse.
func (c *Context) DeadlineFrom(timeout Tick) Tick { return c.k.DeadlineFrom(timeout) }

// IsExpired reports whether deadline has been reached.
func (c *Context) IsExpired(deadline Tick) bool { return c.k.IsExpired(deadline) }

// CreateTask creates a sibling task.
func (c *Context) CreateTask(stackCells uint32, arg any, entry TaskFunc, critical bool) (TaskID, error) {
	c.self()
	return c.k.CreateTask(stackCells, arg, entry, critical)
}

// Yield gives every other eligible task a turn before the caller continues.
func (c *Context) Yield() {
	t := c.self()
	c.k.stats.yields.Add(1)
	t.state = StateReady
	c.k.park(t)
}

// Sleep suspends the task for at least ticks ticks.
func (c *Context) Sleep(ticks Tick) {
	deadline := c.k.DeadlineFrom(ticks)
	c.Wait(deadlineReached{k: c.k, deadline: deadline}, Forever)
}

type deadlineReached struct {
	k        *Kernel
	deadline Tick
}

func (d deadlineReached) Ready() bool { return d.k.IsExpired(d.deadline) }

func (c *Context) self() *task {
	k := c.k
	if k.stopped.Load() {
		runtime.Goexit()
	}
	if k.current != int(c.id) {
		Abort(TrapNotInTask, "task %d is not running", c.id)
	}
	return &k.tasks[c.id]
}
