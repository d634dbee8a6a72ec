package meter

import (
	"errors"
	"testing"

	"github.com/itohio/goemon/pkg/acquisition"
	"github.com/itohio/goemon/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	snaps []Snapshot
	errs  []error
}

func record(m *Meter) *recorder {
	r := &recorder{}
	m.OnSnapshot(func(s Snapshot) { r.snaps = append(r.snaps, s) })
	m.OnError(func(err error) { r.errs = append(r.errs, err) })
	return r
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	buf, err := acquisition.NewDoubleBuffer(cfg.Acquisition.BufferPairs)
	require.NoError(t, err)

	m, err := New(cfg, buf)
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Equal(t, Stats{}, m.Stats())
	assert.Equal(t, 8000, m.Accumulator().Target())
	assert.Equal(t, 0, m.Poll())
}

func TestNew_ConfigErrorsAreBestEffort(t *testing.T) {
	cfg := config.Default()
	cfg.Acquisition.WindowSamples = 0
	cfg.Calibration.CalV = 0
	cfg.Calibration.CalI = 0
	cfg.Calibration.PowerSign = 3

	buf, err := acquisition.NewDoubleBuffer(4)
	require.NoError(t, err)

	m, err := New(cfg, buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.True(t, errors.Is(err, config.ErrConfig))
	require.NotNil(t, m)
	assert.Equal(t, 8000, m.Accumulator().Target())

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), 4)

	// Still processes data.
	buf.PushAll(constant(4, 2065, 2045))
	assert.Equal(t, 2, m.Poll())
}

func TestNew_NegativeThresholdsReplaced(t *testing.T) {
	cfg := config.Default()
	cfg.Acquisition.WindowSamples = 4
	cfg.Thresholds.VNoise = -1
	cfg.Thresholds.INoise = -1
	cfg.Thresholds.MinApparentPower = -1

	buf, err := acquisition.NewDoubleBuffer(4)
	require.NoError(t, err)

	m, err := New(cfg, buf)
	require.ErrorIs(t, err, ErrConfig)
	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), 3)
	assert.Equal(t, config.Default().Thresholds, m.Accumulator().thr)

	rec := record(m)
	buf.PushAll(constant(4, cfg.Calibration.VOffset, cfg.Calibration.IOffset))
	assert.Equal(t, 2, m.Poll())
	require.Len(t, rec.snaps, 1)
	assert.Equal(t, float32(0), rec.snaps[0].PowerFactor)
}

func TestPoll_AlternatingHalves(t *testing.T) {
	cfg := config.Default()
	cfg.Acquisition.WindowSamples = 8
	buf, err := acquisition.NewDoubleBuffer(4)
	require.NoError(t, err)

	m, err := New(cfg, buf)
	require.NoError(t, err)
	r := record(m)

	pairs := mains(16, cfg.Calibration, 8000, 230, 5, 50, 0)
	for k := 0; k < len(pairs); k += 2 {
		buf.PushAll(pairs[k : k+2])
		assert.Equal(t, 1, m.Poll())
		assert.Equal(t, 0, m.Poll(), "signal must be cleared")
	}

	assert.Len(t, r.snaps, 2)
	assert.Empty(t, r.errs)
	assert.Equal(t, Stats{Halves: 8, Windows: 2, Overruns: 0}, m.Stats())
	assert.Equal(t, uint64(1), r.snaps[0].Window)
	assert.Equal(t, uint64(2), r.snaps[1].Window)
}

func TestPoll_BothHalvesPendingIsOverrun(t *testing.T) {
	cfg := config.Default()
	cfg.Acquisition.WindowSamples = 4
	buf, err := acquisition.NewDoubleBuffer(4)
	require.NoError(t, err)

	m, err := New(cfg, buf)
	require.NoError(t, err)
	r := record(m)

	buf.PushAll(constant(4, 2065, 2045))
	assert.Equal(t, 2, m.Poll())
	assert.Len(t, r.snaps, 1)
	require.Len(t, r.errs, 1)
	assert.ErrorIs(t, r.errs[0], ErrOverrun)

	// Drained in producer order: the next expected half is the first one.
	buf.PushAll(constant(2, 2065, 2045))
	assert.Equal(t, 1, m.Poll())
	assert.Len(t, r.errs, 1)
}

func TestPoll_DoesNotReadUnsignalledHalf(t *testing.T) {
	ev := &fakeEvents{}
	cfg := config.Default()
	m, err := New(cfg, ev)
	require.NoError(t, err)

	for range 10 {
		assert.Equal(t, 0, m.Poll())
	}
	assert.Empty(t, ev.reads)
}

func TestPoll_ClearsBeforeReading(t *testing.T) {
	ev := &fakeEvents{}
	ev.halves[acquisition.First] = constant(2, 2065, 2045)
	ev.filled[acquisition.First] = true

	var filledDuringRead bool
	ev.onRead = func(h acquisition.Half) { filledDuringRead = ev.filled[h] }

	m, err := New(config.Default(), ev)
	require.NoError(t, err)
	m.Poll()

	assert.False(t, filledDuringRead)
}

// A half re-asserted while it was processed is one overrun; the pipeline
// keeps going and still completes its window.
func TestPoll_ScenarioOverrunReassertedHalf(t *testing.T) {
	cfg := config.Default()
	cfg.Acquisition.WindowSamples = 8

	ev := &fakeEvents{}
	ev.halves[acquisition.First] = constant(2, 2065, 2045)
	ev.halves[acquisition.Second] = constant(2, 2065, 2045)

	m, err := New(cfg, ev)
	require.NoError(t, err)
	r := record(m)

	ev.filled[acquisition.First] = true
	assert.Equal(t, 1, m.Poll())

	// The producer laps the consumer while the second half is read.
	reasserted := false
	ev.onRead = func(h acquisition.Half) {
		if h == acquisition.Second && !reasserted {
			reasserted = true
			ev.filled[acquisition.Second] = true
		}
	}
	ev.filled[acquisition.Second] = true
	assert.Equal(t, 1, m.Poll())

	require.Len(t, r.errs, 1)
	assert.True(t, errors.Is(r.errs[0], ErrOverrun))
	var oe *OverrunError
	require.True(t, errors.As(r.errs[0], &oe))
	assert.Equal(t, acquisition.Second, oe.Half)

	// The re-asserted half is drained without a second report.
	assert.Equal(t, 1, m.Poll())
	assert.Len(t, r.errs, 1)

	ev.filled[acquisition.First] = true
	assert.Equal(t, 1, m.Poll())

	require.Len(t, r.snaps, 1)
	assert.Equal(t, 8, r.snaps[0].Samples)
	assert.Equal(t, Stats{Halves: 4, Windows: 1, Overruns: 1}, m.Stats())

	// Normal alternation resumes without further reports.
	for range 4 {
		ev.filled[acquisition.Second] = true
		m.Poll()
		ev.filled[acquisition.First] = true
		m.Poll()
	}
	assert.Len(t, r.errs, 1)
	assert.Len(t, r.snaps, 3)
}

// The producer completes both halves between two polls.
func TestPoll_OverrunSkippedHalf(t *testing.T) {
	cfg := config.Default()
	cfg.Acquisition.WindowSamples = 8
	buf, err := acquisition.NewDoubleBuffer(4)
	require.NoError(t, err)

	m, err := New(cfg, buf)
	require.NoError(t, err)
	r := record(m)

	buf.PushAll(constant(2, 2065, 2045))
	assert.Equal(t, 1, m.Poll())

	buf.PushAll(constant(4, 2065, 2045))
	assert.Equal(t, 2, m.Poll())

	require.Len(t, r.errs, 1)
	assert.ErrorIs(t, r.errs[0], ErrOverrun)
	assert.Equal(t, uint64(1), m.Stats().Overruns)

	buf.PushAll(constant(2, 2065, 2045))
	assert.Equal(t, 1, m.Poll())
	assert.Len(t, r.errs, 1)
	assert.Len(t, r.snaps, 1)
}

func TestPoll_OverrunStormDoesNotHalt(t *testing.T) {
	cfg := config.Default()
	cfg.Acquisition.WindowSamples = 64
	buf, err := acquisition.NewDoubleBuffer(4)
	require.NoError(t, err)

	m, err := New(cfg, buf)
	require.NoError(t, err)
	r := record(m)

	for range 50 {
		buf.PushAll(constant(12, 2065, 2045))
		m.Poll()
	}

	assert.NotEmpty(t, r.errs)
	for _, err := range r.errs {
		assert.ErrorIs(t, err, ErrOverrun)
	}
	assert.Greater(t, buf.Lapped(), uint64(0))
	assert.NotEmpty(t, r.snaps)
	assert.Equal(t, uint64(len(r.snaps)), m.Stats().Windows)
}

func TestOverrunError(t *testing.T) {
	err := &OverrunError{Half: acquisition.First, Reason: "test"}
	assert.Equal(t, "overrun on first half: test", err.Error())
	assert.ErrorIs(t, err, ErrOverrun)
}

func TestCallbacks_InOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Acquisition.WindowSamples = 2
	buf, err := acquisition.NewDoubleBuffer(4)
	require.NoError(t, err)

	m, err := New(cfg, buf)
	require.NoError(t, err)

	var order []string
	m.OnSnapshot(func(s Snapshot) { order = append(order, "a") })
	m.OnSnapshot(nil)
	m.OnSnapshot(func(s Snapshot) { order = append(order, "b") })

	buf.PushAll(constant(4, 2065, 2045))
	m.Poll()

	assert.Equal(t, []string{"a", "b", "a", "b"}, order)
}
