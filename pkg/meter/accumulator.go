package meter

import (
	"fmt"

	"github.com/itohio/goemon/pkg/acquisition"
	"github.com/itohio/goemon/pkg/config"
)

// State is the running sums of one accumulation window.
type State struct {
	VSq           uint64  // Sum of squared offset-corrected voltage
	ISq           uint64  // Sum of squared offset-corrected current
	PInst         float64 // Sum of polarity-corrected v*i
	Samples       int
	LastSign      int // -1, 0 (no valid sample yet) or +1
	ZeroCrossings int
}

// Accumulator sums sample pairs over a window and computes a Snapshot each
// time the window completes. It is not safe for concurrent use.
type Accumulator struct {
	target int
	cal    config.CalibrationConfig
	thr    config.ThresholdConfig

	state   State
	ledger  Ledger
	windows uint64
}

// NewAccumulator creates an accumulator emitting one Snapshot per target pairs.
func NewAccumulator(target int, cal config.CalibrationConfig, thr config.ThresholdConfig) (*Accumulator, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: window of %d samples", ErrConfig, target)
	}
	return &Accumulator{
		target: target,
		cal:    cal,
		thr:    thr,
	}, nil
}

// ProcessHalf consumes one buffer half. The window is checked only once the
// whole half has been summed, so a window may exceed the target by up to one
// half; Snapshot.Samples records the actual count.
func (a *Accumulator) ProcessHalf(samples []acquisition.RawSamplePair) (Snapshot, bool) {
	vOff := int64(a.cal.VOffset)
	iOff := int64(a.cal.IOffset)
	sign := float64(a.cal.PowerSign)
	hyst := int64(a.thr.ZeroCrossHysteresis)
	s := &a.state

	for _, p := range samples {
		v := int64(p.Voltage) - vOff
		i := int64(p.Current) - iOff

		s.VSq += uint64(v * v)
		s.ISq += uint64(i * i)
		s.PInst += sign * float64(v*i)

		if v > hyst || v < -hyst {
			cur := 1
			if v < 0 {
				cur = -1
			}
			if cur != s.LastSign && s.LastSign != 0 {
				s.ZeroCrossings++
			}
			s.LastSign = cur
		}

		s.Samples++
	}

	if s.Samples < a.target {
		return Snapshot{}, false
	}

	snap := Compute(*s, a.cal, a.thr, &a.ledger)
	a.windows++
	snap.Window = a.windows

	a.state = State{}

	return snap, true
}

// State returns a copy of the running sums.
func (a *Accumulator) State() State {
	return a.state
}

// Target returns the window length in sample pairs.
func (a *Accumulator) Target() int {
	return a.target
}

// CarryEnergy continues the energy total of a previous accumulator.
func (a *Accumulator) CarryEnergy(ws float64) {
	a.ledger.Carry(ws)
}

// EnergyWs returns the cumulative energy in watt-seconds.
func (a *Accumulator) EnergyWs() float64 {
	return a.ledger.WattSeconds()
}
