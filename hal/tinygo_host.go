//go:build tinygo && !baremetal

package hal

import (
	"os"
	"time"
)

type tinyGoHostHAL struct {
	logger *tinyGoHostLogger
	led    *tinyGoHostLED
	t      *tinyGoHostTime
}

// New returns a TinyGo-on-host HAL for `tinygo run` targets such as linux or wasm, where there
// is no pin mapping and no display.
func New() HAL {
	l := &tinyGoHostLogger{}
	return &tinyGoHostHAL{
		logger: l,
		led:    &tinyGoHostLED{logger: l},
		t:      newTinyGoHostTime(),
	}
}

func (h *tinyGoHostHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHostHAL) LED() LED         { return h.led }
func (h *tinyGoHostHAL) Display() Display { return nil }
func (h *tinyGoHostHAL) Time() Time       { return h.t }

type tinyGoHostTime struct {
	ch  chan uint64
	seq uint64
}

func newTinyGoHostTime() *tinyGoHostTime {
	t := &tinyGoHostTime{ch: make(chan uint64, 16)}
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			t.seq++
			select {
			case t.ch <- t.seq:
			default:
			}
		}
	}()
	return t
}

func (t *tinyGoHostTime) Ticks() <-chan uint64 { return t.ch }

type tinyGoHostLogger struct{}

func (l *tinyGoHostLogger) WriteLineString(s string) {
	os.Stdout.WriteString(s)
	os.Stdout.WriteString("\n")
}

func (l *tinyGoHostLogger) WriteLineBytes(b []byte) {
	os.Stdout.Write(b)
	os.Stdout.WriteString("\n")
}

type tinyGoHostLED struct {
	logger *tinyGoHostLogger
}

func (l *tinyGoHostLED) High() { l.logger.WriteLineString("led: HIGH") }
func (l *tinyGoHostLED) Low()  { l.logger.WriteLineString("led: LOW") }
