// Package monitor shows the kernel task table on a framebuffer and exports it as metrics.
package monitor

import (
	"ember/hal"
	"ember/kernel"

	"go.uber.org/zap"
)

// DefaultPeriod is the refresh period in ticks used when Config.Period is zero.
const DefaultPeriod = 250

// Config selects where the monitor task publishes the task table. Nil sinks are skipped.
type Config struct {
	Title       string
	Period      kernel.Tick
	Framebuffer hal.Framebuffer
	Collector   *Collector
	Logger      *zap.Logger
}

// Task returns the entry function of the monitor task. It runs until the kernel stops.
func Task(cfg Config) kernel.TaskFunc {
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Title == "" {
		cfg.Title = "ember"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *kernel.Context, _ any) {
		var table [kernel.MaxTasks]kernel.TaskInfo
		renderFailed := false
		for {
			v := View{
				Title: cfg.Title,
				Now:   c.Now(),
				Stats: c.Kernel().Stats(),
				Tasks: c.Kernel().Snapshot(table[:0]),
			}
			if cfg.Collector != nil {
				cfg.Collector.Publish(v.Tasks)
			}
			if cfg.Framebuffer != nil && !renderFailed {
				if err := Render(cfg.Framebuffer, v); err != nil {
					// The stub display of boards without a panel fails every frame.
					log.Warn("monitor render disabled", zap.Error(err))
					renderFailed = true
				}
			}
			log.Debug("task table",
				zap.Uint32("tick", uint32(v.Now)),
				zap.Int("tasks", len(v.Tasks)),
				zap.Uint64("dispatches", v.Stats.Dispatches),
			)
			c.Sleep(cfg.Period)
		}
	}
}
