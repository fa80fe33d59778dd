package hal

import (
	"bytes"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// lineSink feeds zap output to a Logger one line per entry.
type lineSink struct {
	l Logger
}

func (s lineSink) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		s.l.WriteLineBytes(line)
	}
	return len(p), nil
}

func (s lineSink) Sync() error { return nil }

// NewZapLogger returns a console-encoded zap logger writing through l at level and above.
func NewZapLogger(l Logger, level zapcore.Level, opts ...zap.Option) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), lineSink{l: l}, level)
	return zap.New(core, opts...)
}
