package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	// MaxTasks is the largest task table a kernel can be configured with.
	MaxTasks = 32

	// DefaultTasks is the task table size used when Config.MaxTasks is zero.
	DefaultTasks = 8

	// DefaultCellBytes is the stack accounting unit of a 32-bit core.
	DefaultCellBytes = 4

	// DefaultStackCells is the stack region reserved for a task created with zero cells.
	DefaultStackCells = 64
)

var (
	// ErrOutOfTaskSlots is returned by CreateTask when every slot holds a live task.
	ErrOutOfTaskSlots = errors.New("kernel: out of task slots")

	// ErrOutOfStack is returned by CreateTask when no free slot can hold the requested stack.
	ErrOutOfStack = errors.New("kernel: out of stack cells")

	// ErrStopped is returned once the dispatch loop has exited.
	ErrStopped = errors.New("kernel: stopped")
)

// Config fixes the kernel dimensions. It is read once by New.
type Config struct {
	// MaxTasks is the task table capacity (1..MaxTasks). Zero selects DefaultTasks.
	MaxTasks int

	// CellBytes is the size of one stack cell. Zero selects DefaultCellBytes.
	CellBytes uint32

	// StackCells bounds the stack arena shared by all tasks. Zero leaves it unbounded.
	StackCells uint32

	// Logger receives lifecycle and trap events. Nil discards them.
	Logger *zap.Logger

	// Idle runs when no task is eligible for dispatch. Nil waits for the next tick.
	Idle func(*Kernel)

	// OnTrap runs once when the kernel halts: on the trapping task, or on the dispatcher when a
	// polled predicate panicked. It must not block.
	OnTrap func(*Trap)
}

// Stats are monotonically increasing kernel counters. They may be read from any goroutine.
type Stats struct {
	Created    uint64
	Terminated uint64
	Dispatches uint64
	Yields     uint64
	Waits      uint64
	Timeouts   uint64
	Idles      uint64
	Traps      uint64
}

type counters struct {
	created    atomic.Uint64
	terminated atomic.Uint64
	dispatches atomic.Uint64
	yields     atomic.Uint64
	waits      atomic.Uint64
	timeouts   atomic.Uint64
	idles      atomic.Uint64
	traps      atomic.Uint64
}

// Kernel is a cooperative scheduler over a fixed task table.
//
// Exactly one task runs at a time. Switching happens only when the running task yields,
// waits or returns. Kernel state other than the tick counter and Stats belongs to whichever
// task is running, so CreateTask and Snapshot must be called before Run or from a task.
type Kernel struct {
	cfg Config
	log *zap.Logger

	ticks  atomic.Uint32
	tickCh chan struct{}

	tasks [MaxTasks]task
	head  int8
	live  int
	crit  int
	seq   uint32

	cursor  [2]int8
	cycle   uint32
	current int

	stackTop uint32

	back     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	stopped  atomic.Bool
	trap     atomic.Pointer[Trap]

	stats counters
}

// New creates a kernel instance. Each instance owns its task table and timebase.
func New(cfg Config) *Kernel {
	if cfg.MaxTasks == 0 {
		cfg.MaxTasks = DefaultTasks
	}
	if cfg.MaxTasks < 0 || cfg.MaxTasks > MaxTasks {
		Abort(TrapInvalidArgument, "max tasks %d outside 1..%d", cfg.MaxTasks, MaxTasks)
	}
	if cfg.CellBytes == 0 {
		cfg.CellBytes = DefaultCellBytes
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	k := &Kernel{
		cfg:     cfg,
		log:     log,
		tickCh:  make(chan struct{}, 1),
		head:    -1,
		cursor:  [2]int8{-1, -1},
		cycle:   1,
		current: -1,
		back:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for i := 0; i < cfg.MaxTasks; i++ {
		t := &k.tasks[i]
		t.id = TaskID(i)
		t.resume = make(chan struct{})
		t.ctx = Context{k: k, id: TaskID(i)}
	}
	return k
}

// CellBytes returns the size of one stack cell.
func (k *Kernel) CellBytes() uint32 { return k.cfg.CellBytes }

// Capacity returns the task table size.
func (k *Kernel) Capacity() int { return k.cfg.MaxTasks }

// Live returns the number of tasks that have not terminated.
func (k *Kernel) Live() int { return k.live }

// Halted returns the trap that stopped the kernel, if any.
func (k *Kernel) Halted() *Trap { return k.trap.Load() }

// Current returns the running task.
func (k *Kernel) Current() (TaskID, bool) {
	if k.current < 0 {
		return 0, false
	}
	return TaskID(k.current), true
}

// Stats returns a copy of the kernel counters.
func (k *Kernel) Stats() Stats {
	return Stats{
		Created:    k.stats.created.Load(),
		Terminated: k.stats.terminated.Load(),
		Dispatches: k.stats.dispatches.Load(),
		Yields:     k.stats.yields.Load(),
		Waits:      k.stats.waits.Load(),
		Timeouts:   k.stats.timeouts.Load(),
		Idles:      k.stats.idles.Load(),
		Traps:      k.stats.traps.Load(),
	}
}

// CreateTask reserves a slot and a stack region of stackCells cells and makes the task Ready.
//
// A slot that ran a task before keeps its stack region and is reused in place when the request
// fits in it. Otherwise a slot gets a new region carved from the arena, and ErrOutOfStack is
// returned only when a bounded arena cannot hold it.
func (k *Kernel) CreateTask(stackCells uint32, arg any, entry TaskFunc, critical bool) (TaskID, error) {
	if entry == nil {
		Abort(TrapInvalidArgument, "nil task entry")
	}
	if k.stopped.Load() {
		return 0, ErrStopped
	}
	if stackCells == 0 {
		stackCells = DefaultStackCells
	}

	reuse, fresh, spare, free := -1, -1, -1, 0
	largest := uint32(0)
	for i := 0; i < k.cfg.MaxTasks; i++ {
		t := &k.tasks[i]
		if t.state != StateTerminated {
			continue
		}
		free++
		if spare < 0 {
			spare = i
		}
		if t.stackCells == 0 {
			if fresh < 0 {
				fresh = i
			}
			continue
		}
		if t.stackCells > largest {
			largest = t.stackCells
		}
		if reuse < 0 && stackCells <= t.stackCells {
			reuse = i
		}
	}
	if free == 0 {
		return 0, ErrOutOfTaskSlots
	}

	slot := reuse
	if slot < 0 {
		// A used slot whose region is too small gets a new region while the arena has room.
		slot = fresh
		if slot < 0 {
			slot = spare
		}
		if k.cfg.StackCells > 0 && k.stackTop+stackCells > k.cfg.StackCells {
			return 0, fmt.Errorf("%w: need %d, arena has %d, largest free slot holds %d",
				ErrOutOfStack, stackCells, k.arenaFree(), largest)
		}
		t := &k.tasks[slot]
		t.stackBase = k.stackTop
		t.stackCells = stackCells
		k.stackTop += stackCells
	}

	t := &k.tasks[slot]
	t.state = StateReady
	t.critical = critical
	t.entry = entry
	t.arg = arg
	t.served = 0
	t.dispatches = 0
	t.seq = k.seq
	k.seq++
	k.link(slot)
	k.live++
	if critical {
		k.crit++
	}
	k.stats.created.Add(1)
	k.log.Debug("task created",
		zap.Uint8("task", uint8(t.id)),
		zap.Uint32("seq", t.seq),
		zap.Uint32("stackBase", t.stackBase),
		zap.Uint32("stackCells", t.stackCells),
		zap.Bool("critical", critical),
	)

	k.launch(t)
	return t.id, nil
}

func (k *Kernel) arenaFree() uint32 {
	if k.cfg.StackCells == 0 || k.stackTop >= k.cfg.StackCells {
		return 0
	}
	return k.cfg.StackCells - k.stackTop
}

// Run is the dispatch loop.
//
// It does not return while tasks are alive. It returns nil once every task has terminated,
// ctx.Err() when ctx is canceled, or the *Trap that halted the kernel.
func (k *Kernel) Run(ctx context.Context) error {
	if k.stopped.Load() || !k.running.CompareAndSwap(false, true) {
		return ErrStopped
	}
	defer k.stop()

	for {
		if tr := k.trap.Load(); tr != nil {
			return tr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if k.live == 0 {
			return nil
		}

		id := k.next()
		if tr := k.trap.Load(); tr != nil {
			return tr
		}
		if id < 0 {
			k.idle(ctx)
			continue
		}
		k.switchTo(&k.tasks[id])
	}
}

func (k *Kernel) stop() {
	k.stopOnce.Do(func() {
		k.stopped.Store(true)
		close(k.done)
	})
}

func (k *Kernel) idle(ctx context.Context) {
	k.stats.idles.Add(1)
	if k.cfg.Idle != nil {
		k.cfg.Idle(k)
		return
	}
	select {
	case <-k.tickCh:
	case <-ctx.Done():
	}
}

func (k *Kernel) switchTo(t *task) {
	t.state = StateRunning
	t.dispatches++
	k.current = int(t.id)
	k.stats.dispatches.Add(1)

	t.resume <- struct{}{}
	<-k.back

	k.current = -1
}
