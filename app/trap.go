package app

import (
	"ember/kernel"
	"ember/monitor"

	"go.uber.org/zap"
)

// onTrap runs on the trapping task after the kernel logged the trap. It repeats the trap on
// the raw HAL logger, which still works when the zap sink is what broke, and paints the trap
// screen. The kernel is already halted when it returns.
func (s *System) onTrap(tr *kernel.Trap) {
	lines := monitor.TrapLines(tr)
	if l := s.h.Logger(); l != nil {
		for _, line := range lines {
			l.WriteLineString(line)
		}
	}

	d := s.h.Display()
	if d == nil {
		return
	}
	fb := d.Framebuffer()
	if fb == nil {
		return
	}
	if err := monitor.RenderTrap(fb, tr); err != nil {
		s.log.Warn("trap screen unavailable", zap.Error(err))
	}
}
