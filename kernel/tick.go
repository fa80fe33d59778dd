package kernel

// Tick is one period of the kernel timebase. The counter wraps at 32 bits.
type Tick uint32

// Timeout is a wait bound in ticks. Any negative value means wait forever.
type Timeout int32

// Forever disables the deadline of a wait.
const Forever Timeout = -1

// Now returns the current tick.
func (k *Kernel) Now() Tick {
	return Tick(k.ticks.Load())
}

// DeadlineFrom returns the tick at which a wait of timeout ticks expires.
func (k *Kernel) DeadlineFrom(timeout Tick) Tick {
	return k.Now() + timeout
}

// IsExpired reports whether now has reached or passed deadline.
//
// The tick space is circular: deadlines up to 2^31-1 ticks ahead compare correctly
// across counter wraparound.
func (k *Kernel) IsExpired(deadline Tick) bool {
	return expired(k.Now(), deadline)
}

func expired(now, deadline Tick) bool {
	return int32(now-deadline) >= 0
}

// TickIncrement advances the counter by one tick.
//
// It is the timer interrupt entry point: safe to call from any goroutine and never blocks.
func (k *Kernel) TickIncrement() {
	k.ticks.Add(1)
	k.wake()
}

// TickTo advances the counter to seq if seq is ahead of the current tick.
//
// It suits tick sources that deliver sequence numbers and may coalesce ticks.
func (k *Kernel) TickTo(seq uint64) {
	for {
		cur := k.ticks.Load()
		next := uint32(seq)
		if int32(next-cur) <= 0 {
			return
		}
		if k.ticks.CompareAndSwap(cur, next) {
			k.wake()
			return
		}
	}
}

func (k *Kernel) wake() {
	select {
	case k.tickCh <- struct{}{}:
	default:
	}
}
