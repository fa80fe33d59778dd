package app

import (
	"ember/kernel"
	"ember/kernel/fixed"
	"ember/kernel/ksync"

	"go.uber.org/zap"
)

// selftest checks the container ordering on the target before the pipeline starts. It is
// critical, so it runs first, and its slot is free for reuse once it returns.
func (s *System) selftest(c *kernel.Context, _ any) {
	var buf [3]int32
	st := fixed.NewStack(buf[:])
	for i := int32(1); i <= 3; i++ {
		st.TryPush(i)
	}
	for want := int32(3); want >= 1; want-- {
		if got, _ := st.TryPop(); got != want {
			kernel.Abort(kernel.TrapInvalidArgument, "selftest: stack popped %d, want %d", got, want)
		}
	}
	s.log.Info("selftest passed",
		zap.Int("tasks", c.Kernel().Live()),
		zap.Uint32("cellBytes", c.Kernel().CellBytes()),
	)
}

// sensor samples a triangle wave every period and queues it, dropping the reading when the
// consumer is more than one period behind.
func (s *System) sensor(c *kernel.Context, arg any) {
	src := arg.(*source)
	period := s.cfg.SensorPeriod
	for {
		c.Sleep(period)
		phase := int32(uint32(c.Now()/period) % 100)
		if phase >= 50 {
			phase = 100 - phase
		}
		smp := Sample{Pointer: src, Value: 200 + phase*2}
		if s.samples.Push(c, smp, kernel.Timeout(period)) == kernel.TimedOut {
			s.log.Debug("sample dropped", zap.String("source", src.name), zap.Int32("value", smp.Value))
			s.update(c, func(st *Stats) { st.Dropped++ })
		}
	}
}

func (s *System) producer(c *kernel.Context, arg any) {
	src := arg.(*source)
	period := s.cfg.SensorPeriod * kernel.Tick(src.id+2)
	var seq int32
	for {
		c.Sleep(period)
		seq++
		s.samples.Push(c, Sample{Pointer: src, Value: seq}, kernel.Forever)
	}
}

func (s *System) consumer(c *kernel.Context, _ any) {
	for {
		smp, _ := s.samples.Pop(c, kernel.Forever)
		var batch bool
		s.update(c, func(st *Stats) {
			st.Samples++
			st.PerSource[smp.Pointer.id]++
			st.Last[smp.Pointer.id] = smp.Value
			batch = st.Samples%uint32(s.cfg.Batch) == 0
		})
		if batch {
			s.pending++
		}
	}
}

// transmitter sends a stats report for each completed batch. At most TxSlots reports are on
// the air at once.
func (s *System) transmitter(c *kernel.Context, arg any) {
	log := s.log.With(zap.Int("transmitter", arg.(int)))
	for {
		c.WaitIntNonZero(&s.pending, kernel.Forever)
		s.pending--

		// Encoding takes a turn; the consumer must not change the stats meanwhile.
		l := ksync.LockMutex(c, &s.mu)
		report := s.stats
		c.Yield()
		l.Unlock()

		permit := ksync.AcquireSemaphore(c, &s.txSlots)
		s.inTx++
		if s.inTx > s.stats.MaxInTx {
			s.update(c, func(st *Stats) { st.MaxInTx = s.inTx })
		}
		c.Sleep(3 * s.cfg.SensorPeriod)
		s.inTx--
		permit.Release()

		s.update(c, func(st *Stats) { st.Flushes++ })
		log.Info("report sent",
			zap.Uint32("samples", report.Samples),
			zap.Uint32("dropped", report.Dropped),
			zap.Uint32("lines", report.Lines),
		)
	}
}

// serialFeed plays the receive side of a UART: one byte per tick into the receive buffer.
func (s *System) serialFeed(c *kernel.Context, _ any) {
	for {
		for _, line := range s.cfg.Lines {
			for i := 0; i < len(line); i++ {
				s.rx.Append(c, line[i], kernel.Forever)
				c.Sleep(1)
			}
			s.rx.Append(c, '\n', kernel.Forever)
			c.Sleep(1)
		}
	}
}

// assembler splits the receive buffer into lines. A line that does not fit the buffer is
// dropped up to its terminator.
func (s *System) assembler(c *kernel.Context, _ any) {
	log := s.log.Named("serial")
	w := fixed.NewDelimiterWaiter[byte](&s.rx, '\n', s.rx.Cap())
	skipping := false
	for {
		w.Wait(c, kernel.Forever)
		switch {
		case w.MaxReached():
			if !skipping {
				log.Warn("line overflow", zap.Int("capacity", s.rx.Cap()))
				s.update(c, func(st *Stats) { st.Overflows++ })
			}
			skipping = true
		case skipping:
			skipping = false
		default:
			log.Info("line", zap.ByteString("text", s.rx.Items()[:w.Count()]))
			s.update(c, func(st *Stats) { st.Lines++ })
		}
		s.rx.RemoveN(c, 0, w.CountWithDelimiter(), 0)
		w.Reset()
	}
}

func (s *System) heartbeat(c *kernel.Context, _ any) {
	led := s.h.LED()
	for {
		s.led = !s.led
		if led != nil {
			if s.led {
				led.High()
			} else {
				led.Low()
			}
		}
		c.Sleep(s.cfg.Heartbeat)
	}
}

// update runs fn on the shared stats while holding the stats mutex.
func (s *System) update(c *kernel.Context, fn func(st *Stats)) {
	defer ksync.LockMutex(c, &s.mu).Unlock()
	fn(&s.stats)
}
