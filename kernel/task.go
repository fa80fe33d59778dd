package kernel

import (
	"runtime"

	"go.uber.org/zap"
)

// TaskID is the slot index of a task.
type TaskID uint8

// TaskFunc is a task entry point. The task terminates when it returns.
type TaskFunc func(c *Context, arg any)

// State is the lifecycle state of a task slot.
type State uint8

const (
	// StateTerminated marks a slot that is free for CreateTask: never used, or its task returned.
	StateTerminated State = iota
	StateReady
	StateRunning
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateTerminated:
		return "terminated"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

type waitCond struct {
	pred     Predicate
	deadline Tick
	bounded  bool
}

type task struct {
	id       TaskID
	state    State
	critical bool
	seq      uint32

	stackBase  uint32
	stackCells uint32

	entry TaskFunc
	arg   any
	cond  waitCond

	// Ring of live tasks in creation order.
	next, prev int8

	served     uint32
	dispatches uint64

	resume chan struct{}
	ctx    Context
}

// TaskInfo describes one live task.
type TaskInfo struct {
	ID         TaskID
	Seq        uint32
	State      State
	Critical   bool
	StackBase  uint32
	StackCells uint32
	Dispatches uint64
	Deadline   Tick
	Bounded    bool
}

// Snapshot appends the live tasks in creation order to dst.
func (k *Kernel) Snapshot(dst []TaskInfo) []TaskInfo {
	if k.head < 0 {
		return dst
	}
	i := k.head
	for {
		t := &k.tasks[i]
		dst = append(dst, TaskInfo{
			ID:         t.id,
			Seq:        t.seq,
			State:      t.state,
			Critical:   t.critical,
			StackBase:  t.stackBase,
			StackCells: t.stackCells,
			Dispatches: t.dispatches,
			Deadline:   t.cond.deadline,
			Bounded:    t.cond.bounded,
		})
		i = t.next
		if i == k.head {
			return dst
		}
	}
}

func (k *Kernel) link(slot int) {
	t := &k.tasks[slot]
	s := int8(slot)
	if k.head < 0 {
		k.head = s
		t.next, t.prev = s, s
		return
	}
	h := &k.tasks[k.head]
	tail := h.prev
	t.prev = tail
	t.next = k.head
	k.tasks[tail].next = s
	h.prev = s
}

func (k *Kernel) unlink(slot int) {
	t := &k.tasks[slot]
	s := int8(slot)
	for c := range k.cursor {
		if k.cursor[c] == s {
			k.cursor[c] = t.prev
		}
	}
	if t.next == s {
		k.head = -1
		k.cursor = [2]int8{-1, -1}
		return
	}
	k.tasks[t.prev].next = t.next
	k.tasks[t.next].prev = t.prev
	if k.head == s {
		k.head = t.next
	}
}

func (k *Kernel) launch(t *task) {
	go func() {
		select {
		case <-t.resume:
		case <-k.done:
			return
		}

		finished := false
		defer func() {
			if finished {
				return
			}
			r := recover()
			if r == nil || k.stopped.Load() {
				// runtime.Goexit from park while the kernel shuts down.
				return
			}
			k.raise(t, r)
			k.back <- struct{}{}
		}()

		t.entry(&t.ctx, t.arg)
		k.exit(t)
		finished = true
		k.back <- struct{}{}
	}()
}

func (k *Kernel) exit(t *task) {
	k.unlink(int(t.id))
	t.state = StateTerminated
	t.entry = nil
	t.arg = nil
	t.cond = waitCond{}
	k.live--
	if t.critical {
		k.crit--
	}
	k.stats.terminated.Add(1)
	k.log.Debug("task terminated",
		zap.Uint8("task", uint8(t.id)),
		zap.Uint32("seq", t.seq),
		zap.Uint64("dispatches", t.dispatches),
	)
}

// park hands the CPU back to the dispatcher and blocks until t is dispatched again.
func (k *Kernel) park(t *task) {
	k.back <- struct{}{}
	select {
	case <-t.resume:
	case <-k.done:
		runtime.Goexit()
	}
}

func classOf(critical bool) int {
	if critical {
		return 1
	}
	return 0
}

// next picks the task to dispatch, or -1 if none is eligible.
//
// Every eligible critical task gets one turn per cycle before a normal task runs; each
// normal dispatch starts a new cycle.
func (k *Kernel) next() int {
	if k.crit > 0 {
		if id := k.pick(true); id >= 0 {
			return id
		}
	}
	if id := k.pick(false); id >= 0 {
		k.cycle++
		return id
	}
	if k.crit > 0 {
		k.cycle++
		return k.pick(true)
	}
	return -1
}

func (k *Kernel) pick(critical bool) int {
	if k.head < 0 {
		return -1
	}
	c := classOf(critical)
	start := k.head
	if cur := k.cursor[c]; cur >= 0 {
		start = k.tasks[cur].next
	}

	i := start
	for {
		t := &k.tasks[i]
		if t.critical == critical && (!critical || t.served != k.cycle) && k.eligible(t) {
			k.cursor[c] = i
			if critical {
				t.served = k.cycle
			}
			return int(i)
		}
		if k.trap.Load() != nil {
			return -1
		}
		i = t.next
		if i == start {
			return -1
		}
	}
}

func (k *Kernel) eligible(t *task) bool {
	switch t.state {
	case StateReady:
		return true
	case StateWaiting:
		return k.poll(t)
	default:
		return false
	}
}

// poll evaluates the wait condition of t on the dispatcher. A panicking predicate traps t.
func (k *Kernel) poll(t *task) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			k.raise(t, r)
			ok = false
		}
	}()
	if t.cond.pred.Ready() {
		return true
	}
	return t.cond.bounded && expired(k.Now(), t.cond.deadline)
}
