package meter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/goemon/pkg/acquisition"
	"github.com/itohio/goemon/pkg/config"
)

var _ EnergyMeter = (*Meter)(nil)

// EnergyMeter drains an acquisition buffer and reports one Snapshot per window.
type EnergyMeter interface {
	Poll() int
	Run(ctx context.Context)
	OnSnapshot(func(Snapshot))
	OnError(func(error))
	Stats() Stats
}

// Stats are lifetime counters of a Meter.
type Stats struct {
	Halves   uint64 // Buffer halves processed
	Windows  uint64 // Snapshots emitted
	Overruns uint64 // Overruns detected
}

// Meter is the buffer dispatcher: it polls the two half-filled signals,
// hands each ready half to the Accumulator and forwards completed snapshots
// to the registered callbacks.
//
// Poll and Run must be called from a single goroutine. Callbacks run on that
// goroutine, synchronously and in emission order, so a slow callback eats
// into the time budget for draining the next half.
type Meter struct {
	events       acquisition.Events
	acc          *Accumulator
	pollInterval time.Duration

	// Dispatcher state, owned by the polling goroutine.
	last    acquisition.Half
	started bool
	lapped  [2]bool // overrun already reported for the pending re-assertion

	snapshotCbs []func(Snapshot)
	errorCbs    []func(error)
	cbMu        sync.RWMutex

	halves   atomic.Uint64
	windows  atomic.Uint64
	overruns atomic.Uint64
}

// New creates a Meter reading from events. The returned Meter is always
// usable: settings that cannot work are replaced by defaults, and the error
// lists every replacement (each wrapping ErrConfig).
func New(cfg *config.Config, events acquisition.Events) (*Meter, error) {
	def := config.Default()
	var errs []error

	target := cfg.Acquisition.WindowSamples
	if target <= 0 {
		errs = append(errs, fmt.Errorf("%w: window_samples %d, using %d", ErrConfig, target, def.Acquisition.WindowSamples))
		target = def.Acquisition.WindowSamples
	}

	cal := cfg.Calibration
	if cal.CalV == 0 {
		errs = append(errs, fmt.Errorf("%w: cal_v is zero, using %g", ErrConfig, def.Calibration.CalV))
		cal.CalV = def.Calibration.CalV
	}
	if cal.CalI == 0 {
		errs = append(errs, fmt.Errorf("%w: cal_i is zero, using %g", ErrConfig, def.Calibration.CalI))
		cal.CalI = def.Calibration.CalI
	}
	if cal.PowerSign != 1 && cal.PowerSign != -1 {
		errs = append(errs, fmt.Errorf("%w: power_sign %d, using %d", ErrConfig, cal.PowerSign, def.Calibration.PowerSign))
		cal.PowerSign = def.Calibration.PowerSign
	}

	// Negative or NaN gates would let 0/0 through to the power factor.
	thr := cfg.Thresholds
	if !(thr.VNoise >= 0) {
		errs = append(errs, fmt.Errorf("%w: v_noise %g, using %g", ErrConfig, thr.VNoise, def.Thresholds.VNoise))
		thr.VNoise = def.Thresholds.VNoise
	}
	if !(thr.INoise >= 0) {
		errs = append(errs, fmt.Errorf("%w: i_noise %g, using %g", ErrConfig, thr.INoise, def.Thresholds.INoise))
		thr.INoise = def.Thresholds.INoise
	}
	if !(thr.MinApparentPower >= 0) {
		errs = append(errs, fmt.Errorf("%w: min_apparent_power %g, using %g", ErrConfig, thr.MinApparentPower, def.Thresholds.MinApparentPower))
		thr.MinApparentPower = def.Thresholds.MinApparentPower
	}

	acc, err := NewAccumulator(target, cal, thr)
	if err != nil {
		// unreachable: target is positive here
		return nil, err
	}

	m := &Meter{
		events:       events,
		acc:          acc,
		pollInterval: cfg.Acquisition.PollInterval,
	}

	return m, errors.Join(errs...)
}

// Poll checks both half signals once and processes every half that is ready.
// It never blocks and returns the number of halves processed.
func (m *Meter) Poll() int {
	next := acquisition.First
	if m.started {
		next = m.last.Opposite()
	}

	// With both halves pending the producer is already writing into one of them.
	if m.events.Filled(next) && m.events.Filled(next.Opposite()) && !m.lapped[acquisition.First] && !m.lapped[acquisition.Second] {
		m.overrun(next.Opposite(), "both halves pending")
	}

	processed := 0
	for _, h := range [2]acquisition.Half{next, next.Opposite()} {
		if !m.events.Filled(h) {
			continue
		}
		// Clear before reading so the next fill of this half is not missed.
		m.events.Clear(h)

		if m.started && m.last == h && !m.lapped[h] {
			m.overrun(h, "opposite half was skipped")
		}
		m.lapped[h] = false

		m.process(h)
		processed++

		if m.events.Filled(h) {
			m.lapped[h] = true
			m.overrun(h, "signal raised again before the opposite half was read")
		}
	}

	return processed
}

// Run polls until ctx is cancelled, idling for the poll interval whenever
// nothing was ready.
func (m *Meter) Run(ctx context.Context) {
	idle := newIdler(m.pollInterval)
	defer idle.stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if m.Poll() > 0 {
			continue
		}
		if !idle.wait(ctx) {
			return
		}
	}
}

// idler sleeps between empty polls on a single reused timer.
type idler struct {
	d     time.Duration
	timer *time.Timer
}

func newIdler(d time.Duration) *idler {
	i := &idler{d: d}
	if d > 0 {
		i.timer = time.NewTimer(d)
		i.timer.Stop()
	}
	return i
}

// wait returns false once ctx is done.
func (i *idler) wait(ctx context.Context) bool {
	if i.timer == nil {
		runtime.Gosched()
		return ctx.Err() == nil
	}
	i.timer.Reset(i.d)
	select {
	case <-ctx.Done():
		i.timer.Stop()
		return false
	case <-i.timer.C:
		return true
	}
}

func (i *idler) stop() {
	if i.timer != nil {
		i.timer.Stop()
	}
}

func (m *Meter) process(h acquisition.Half) {
	m.last = h
	m.started = true

	snap, ok := m.acc.ProcessHalf(m.events.Samples(h))
	m.halves.Add(1)
	if !ok {
		return
	}

	m.windows.Add(1)
	m.notifySnapshot(snap)
}

func (m *Meter) overrun(h acquisition.Half, reason string) {
	m.overruns.Add(1)
	err := &OverrunError{Half: h, Reason: reason}
	slog.Debug("acquisition overrun", "half", h, "reason", reason)
	m.notifyError(err)
}

// OnSnapshot registers a callback receiving every completed window.
func (m *Meter) OnSnapshot(callback func(Snapshot)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.snapshotCbs = append(m.snapshotCbs, callback)
}

// OnError registers a callback receiving overrun reports.
func (m *Meter) OnError(callback func(error)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.errorCbs = append(m.errorCbs, callback)
}

// Stats returns the lifetime counters. Safe to call from any goroutine.
func (m *Meter) Stats() Stats {
	return Stats{
		Halves:   m.halves.Load(),
		Windows:  m.windows.Load(),
		Overruns: m.overruns.Load(),
	}
}

// Accumulator exposes the window accumulator. Not safe to use while polling.
func (m *Meter) Accumulator() *Accumulator {
	return m.acc
}

func (m *Meter) notifySnapshot(s Snapshot) {
	m.cbMu.RLock()
	callbacks := m.snapshotCbs
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(s)
		}
	}
}

func (m *Meter) notifyError(err error) {
	m.cbMu.RLock()
	callbacks := m.errorCbs
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(err)
		}
	}
}
