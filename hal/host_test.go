//go:build !tinygo

package hal

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestHostTimeAccumulatesMilliseconds(t *testing.T) {
	ht := newHostTime()
	now := time.Unix(100, 0)
	ht.now = func() time.Time { return now }

	ht.step()
	now = now.Add(2500 * time.Microsecond)
	ht.step()
	now = now.Add(600 * time.Microsecond)
	ht.step()

	var got []uint64
	for len(ht.ch) > 0 {
		got = append(got, <-ht.ch)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, got)
}

func TestHostFramebufferPresentPublishes(t *testing.T) {
	fb := newHostFramebuffer(4, 2)
	fb.ClearRGB(0xFF, 0, 0)

	dst := make([]byte, len(fb.front))
	assert.Zero(t, fb.snapshotRGB565(dst))
	assert.Equal(t, make([]byte, len(dst)), dst)

	require.NoError(t, fb.Present())
	assert.Equal(t, uint64(1), fb.snapshotRGB565(dst))
	p := RGB565(0xFF, 0, 0)
	assert.Equal(t, []byte{byte(p), byte(p >> 8)}, dst[:2])
}

func TestZapLoggerWritesLines(t *testing.T) {
	var out bytes.Buffer
	h := NewWithOutput(&out)
	log := NewZapLogger(h.Logger(), zapcore.InfoLevel)

	log.Debug("hidden")
	log.Info("task created", zap.Int("task", 3))
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimRight(out.Bytes(), "\n"), []byte{'\n'})
	require.Len(t, lines, 1)
	assert.Contains(t, string(lines[0]), "task created")
	assert.Contains(t, string(lines[0]), `"task": 3`)
}

func TestRunHeadlessStopsAfterTicks(t *testing.T) {
	h := NewWithOutput(&bytes.Buffer{})
	steps := 0
	err := RunHeadless(context.Background(), h, func() error {
		steps++
		return nil
	}, HeadlessConfig{Hz: 1000, Ticks: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, steps)
	assert.NotEmpty(t, h.Time().Ticks())
}

func TestRunHeadlessStopsOnStepError(t *testing.T) {
	h := NewWithOutput(&bytes.Buffer{})
	boom := errors.New("boom")
	err := RunHeadless(context.Background(), h, func() error { return boom }, HeadlessConfig{Hz: 1000})
	assert.ErrorIs(t, err, boom)
}
