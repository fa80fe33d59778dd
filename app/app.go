// Package app is the demo firmware: a sensor pipeline, a serial line assembler and the task
// monitor, all running as cooperative tasks on one kernel.
package app

import (
	"context"
	"fmt"

	"ember/hal"
	"ember/internal/buildinfo"
	"ember/kernel"
	"ember/kernel/fixed"
	"ember/kernel/ksync"
	"ember/monitor"

	"go.uber.org/zap"
)

const (
	maxSources    = 1 + maxProducers
	maxProducers  = 4
	maxQueueDepth = 32
	rxBytes       = 32
)

// Config sizes the demo system. Zero fields select defaults.
type Config struct {
	Kernel kernel.Config

	Producers     int
	QueueDepth    int
	Transmitters  int
	TxSlots       int
	Batch         int
	SensorPeriod  kernel.Tick
	MonitorPeriod kernel.Tick
	Heartbeat     kernel.Tick

	// Lines is fed to the serial assembler in a loop. Nil selects a canned sentence set.
	Lines []string
}

func (cfg *Config) setDefaults() error {
	if cfg.Kernel.MaxTasks == 0 {
		cfg.Kernel.MaxTasks = 16
	}
	if cfg.Kernel.StackCells == 0 {
		cfg.Kernel.StackCells = 2048
	}
	if cfg.Producers == 0 {
		cfg.Producers = 2
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = 8
	}
	if cfg.Transmitters == 0 {
		cfg.Transmitters = 3
	}
	if cfg.TxSlots == 0 {
		cfg.TxSlots = 2
	}
	if cfg.Batch == 0 {
		cfg.Batch = 8
	}
	if cfg.SensorPeriod == 0 {
		cfg.SensorPeriod = 20
	}
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = 500
	}
	if cfg.Lines == nil {
		cfg.Lines = defaultLines
	}

	switch {
	case cfg.Producers < 0 || cfg.Producers > maxProducers:
		return fmt.Errorf("producers %d outside 0..%d", cfg.Producers, maxProducers)
	case cfg.QueueDepth < 1 || cfg.QueueDepth > maxQueueDepth:
		return fmt.Errorf("queue depth %d outside 1..%d", cfg.QueueDepth, maxQueueDepth)
	case cfg.TxSlots < 1 || cfg.Transmitters < 1:
		return fmt.Errorf("need at least one transmitter and slot, got %d/%d", cfg.Transmitters, cfg.TxSlots)
	}
	return nil
}

var defaultLines = []string{
	"$EMB,BOOT,1",
	"$EMB,TEMP,21.5",
	"$EMB,NOTE,this sentence is far too long for the receive buffer",
	"$EMB,HUM,40",
}

type source struct {
	id   int
	name string
}

// Sample is one reading queued from a source to the consumer.
type Sample = fixed.PointerAndValue[source, int32]

// Stats is the shared pipeline state guarded by the stats mutex.
type Stats struct {
	Samples   uint32
	Dropped   uint32
	PerSource [maxSources]uint32
	Last      [maxSources]int32
	Flushes   uint32
	MaxInTx   int
	Lines     uint32
	Overflows uint32
}

// System is the demo firmware bound to one HAL.
type System struct {
	h   hal.HAL
	k   *kernel.Kernel
	log *zap.Logger
	cfg Config
	col *monitor.Collector

	sources   [maxSources]source
	sampleBuf [maxQueueDepth]Sample
	samples   fixed.Queue[Sample]

	rxBuf [rxBytes]byte
	rx    fixed.Buffer[byte]

	mu      ksync.Mutex
	stats   Stats
	pending int
	inTx    int
	txSlots ksync.Semaphore
	led     bool
}

// New builds the kernel and creates every task. Call Run to start dispatching.
func New(h hal.HAL, log *zap.Logger, cfg Config) (*System, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("app config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &System{h: h, log: log, cfg: cfg}
	kcfg := cfg.Kernel
	if kcfg.Logger == nil {
		kcfg.Logger = log.Named("kernel")
	}
	kcfg.OnTrap = s.onTrap
	s.k = kernel.New(kcfg)
	s.col = monitor.NewCollector(s.k)

	s.samples = fixed.NewQueue(s.sampleBuf[:cfg.QueueDepth])
	s.rx = fixed.NewBuffer(s.rxBuf[:])
	s.txSlots = ksync.NewSemaphore(cfg.TxSlots, cfg.TxSlots)
	s.sources[0] = source{id: 0, name: "sensor"}
	for i := 1; i <= cfg.Producers; i++ {
		s.sources[i] = source{id: i, name: fmt.Sprintf("producer%d", i)}
	}

	type taskDef struct {
		name     string
		cells    uint32
		arg      any
		entry    kernel.TaskFunc
		critical bool
	}
	defs := []taskDef{
		{"selftest", 32, nil, s.selftest, true},
		{"sensor", 48, &s.sources[0], s.sensor, true},
	}
	for i := 1; i <= cfg.Producers; i++ {
		defs = append(defs, taskDef{"producer", 48, &s.sources[i], s.producer, false})
	}
	defs = append(defs, taskDef{"consumer", 64, nil, s.consumer, false})
	for i := 0; i < cfg.Transmitters; i++ {
		defs = append(defs, taskDef{"transmitter", 64, i, s.transmitter, false})
	}
	defs = append(defs,
		taskDef{"serial", 32, nil, s.serialFeed, false},
		taskDef{"assembler", 64, nil, s.assembler, false},
		taskDef{"heartbeat", 16, nil, s.heartbeat, false},
	)

	mcfg := monitor.Config{
		Title:     "ember " + buildinfo.Short(),
		Period:    cfg.MonitorPeriod,
		Collector: s.col,
		Logger:    log.Named("monitor"),
	}
	if d := h.Display(); d != nil {
		mcfg.Framebuffer = d.Framebuffer()
	}
	defs = append(defs, taskDef{"monitor", 128, nil, monitor.Task(mcfg), false})

	for _, sp := range defs {
		id, err := s.k.CreateTask(sp.cells, sp.arg, sp.entry, sp.critical)
		if err != nil {
			return nil, fmt.Errorf("create %s task: %w", sp.name, err)
		}
		log.Debug("task ready", zap.String("name", sp.name), zap.Uint8("task", uint8(id)))
	}
	return s, nil
}

// Kernel returns the kernel the system runs on.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// Collector returns the metrics collector fed by the monitor task.
func (s *System) Collector() *monitor.Collector { return s.col }

// Stats returns the pipeline counters. Call it only after Run returned.
func (s *System) Stats() Stats { return s.stats }

// Run forwards the HAL tick stream to the kernel and dispatches tasks until ctx is done or a
// task traps.
func (s *System) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if t := s.h.Time(); t != nil {
		if ch := t.Ticks(); ch != nil {
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case seq := <-ch:
						s.k.TickTo(seq)
					}
				}
			}()
		}
	}
	return s.k.Run(ctx)
}

// Step reports the trap that halted the kernel, for runners that poll once per frame.
func (s *System) Step() error {
	if tr := s.k.Halted(); tr != nil {
		return tr
	}
	return nil
}
