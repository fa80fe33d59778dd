package kernel

import (
	"fmt"

	"go.uber.org/zap"
)

// TrapKind classifies a fatal usage error.
type TrapKind uint8

const (
	TrapPanic TrapKind = iota
	TrapNotInTask
	TrapInvalidArgument
	TrapMutexNotOwner
	TrapMutexRelock
	TrapSemaphoreOverflow
	TrapIndexRange
)

func (k TrapKind) String() string {
	switch k {
	case TrapPanic:
		return "panic"
	case TrapNotInTask:
		return "not in task"
	case TrapInvalidArgument:
		return "invalid argument"
	case TrapMutexNotOwner:
		return "mutex not owned"
	case TrapMutexRelock:
		return "mutex relock"
	case TrapSemaphoreOverflow:
		return "semaphore overflow"
	case TrapIndexRange:
		return "index out of range"
	default:
		return "unknown"
	}
}

// Trap describes the fault that halted the kernel.
type Trap struct {
	Task  TaskID
	Kind  TrapKind
	Msg   string
	Value any
	Stack []byte
}

func (t *Trap) Error() string {
	return fmt.Sprintf("kernel trap: task=%d %s: %s", t.Task, t.Kind, t.Msg)
}

// Abort raises a fatal usage error. Inside a task it halts the kernel; elsewhere it panics
// with a *Trap.
func Abort(kind TrapKind, format string, args ...any) {
	panic(&Trap{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (k *Kernel) raise(t *task, r any) {
	tr, ok := r.(*Trap)
	if !ok {
		tr = &Trap{Kind: TrapPanic, Msg: fmt.Sprint(r), Value: r}
	}
	tr.Task = t.id
	tr.Stack = captureStack()
	if !k.trap.CompareAndSwap(nil, tr) {
		return
	}

	k.stats.traps.Add(1)
	k.log.Error("kernel trap",
		zap.Uint8("task", uint8(t.id)),
		zap.Stringer("kind", tr.Kind),
		zap.String("msg", tr.Msg),
		zap.ByteString("stack", tr.Stack),
	)
	if k.cfg.OnTrap != nil {
		k.cfg.OnTrap(tr)
	}
}
