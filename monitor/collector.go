package monitor

import (
	"strconv"
	"sync"

	"ember/kernel"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace prefixes every exported metric.
	Namespace = "ember"

	kernelSubsystem = "kernel"
	taskSubsystem   = "task"
)

// Collector exports kernel counters and the last published task table to Prometheus.
//
// Kernel counters are read at scrape time. The task table can only be read by a task, so the
// monitor task publishes it and scrapes see the latest copy.
type Collector struct {
	k *kernel.Kernel

	mu    sync.Mutex
	tasks []kernel.TaskInfo

	tick       *prometheus.Desc
	live       *prometheus.Desc
	events     *prometheus.Desc
	state      *prometheus.Desc
	dispatches *prometheus.Desc
	stack      *prometheus.Desc
}

// NewCollector returns a collector for k.
func NewCollector(k *kernel.Kernel) *Collector {
	return &Collector{
		k:     k,
		tasks: make([]kernel.TaskInfo, 0, kernel.MaxTasks),
		tick: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, kernelSubsystem, "tick"),
			"Current value of the kernel tick counter.",
			nil, nil,
		),
		live: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, kernelSubsystem, "tasks"),
			"Live tasks in the last published task table.",
			nil, nil,
		),
		events: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, kernelSubsystem, "events_total"),
			"Scheduler events by kind.",
			[]string{"event"}, nil,
		),
		state: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, taskSubsystem, "state"),
			"Task state, 1 for the state the task is in.",
			[]string{"task", "critical", "state"}, nil,
		),
		dispatches: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, taskSubsystem, "dispatches_total"),
			"Dispatch turns given to the task.",
			[]string{"task", "critical"}, nil,
		),
		stack: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, taskSubsystem, "stack_cells"),
			"Stack cells reserved by the task slot.",
			[]string{"task", "critical"}, nil,
		),
	}
}

// Publish replaces the exported task table.
func (c *Collector) Publish(tasks []kernel.TaskInfo) {
	c.mu.Lock()
	c.tasks = append(c.tasks[:0], tasks...)
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tick
	ch <- c.live
	ch <- c.events
	ch <- c.state
	ch <- c.dispatches
	ch <- c.stack
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.tick, prometheus.GaugeValue, float64(c.k.Now()))

	s := c.k.Stats()
	for _, e := range []struct {
		name  string
		value uint64
	}{
		{"created", s.Created},
		{"terminated", s.Terminated},
		{"dispatch", s.Dispatches},
		{"yield", s.Yields},
		{"wait", s.Waits},
		{"timeout", s.Timeouts},
		{"idle", s.Idles},
		{"trap", s.Traps},
	} {
		ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(e.value), e.name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(len(c.tasks)))
	for _, t := range c.tasks {
		id := strconv.Itoa(int(t.ID))
		crit := strconv.FormatBool(t.Critical)
		for _, st := range []kernel.State{kernel.StateReady, kernel.StateRunning, kernel.StateWaiting} {
			v := 0.0
			if t.State == st {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, id, crit, st.String())
		}
		ch <- prometheus.MustNewConstMetric(c.dispatches, prometheus.CounterValue, float64(t.Dispatches), id, crit)
		ch <- prometheus.MustNewConstMetric(c.stack, prometheus.GaugeValue, float64(t.StackCells), id, crit)
	}
}
