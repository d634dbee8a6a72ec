package meter

import (
	"github.com/chewxy/math32"

	"github.com/itohio/goemon/pkg/config"
)

// Compute turns one window of accumulated sums into calibrated metrics and
// integrates the active power into the ledger. Every division is guarded by
// the noise gates, so there are no error paths.
func Compute(s State, cal config.CalibrationConfig, thr config.ThresholdConfig, ledger *Ledger) Snapshot {
	snap := Snapshot{
		Samples:       s.Samples,
		ZeroCrossings: s.ZeroCrossings,
	}
	if s.Samples <= 0 {
		snap.ZeroCrossings = 0
		snap.EnergyKWh = ledger.KWh()
		return snap
	}

	n := float32(s.Samples)
	vRMS := math32.Sqrt(float32(s.VSq)/n) * cal.CalV
	iRMS := math32.Sqrt(float32(s.ISq)/n) * cal.CalI

	// No voltage means no meaningful current or frequency either.
	if vRMS < thr.VNoise {
		vRMS = 0
		iRMS = 0
		snap.ZeroCrossings = 0
	}
	if iRMS < thr.INoise {
		iRMS = 0
	}

	active := (float32(s.PInst) / n) * cal.CalV * cal.CalI
	if iRMS == 0 {
		active = 0
	}
	active = math32.Abs(active)

	apparent := vRMS * iRMS

	var pf float32
	if apparent > 0 && apparent > thr.MinApparentPower {
		pf = math32.Min(100, active/apparent*100)
	}

	ledger.Add(active)

	snap.VRMS = vRMS
	snap.IRMS = iRMS
	snap.ActivePower = active
	snap.ApparentPower = apparent
	snap.PowerFactor = pf
	snap.Frequency = float32(snap.ZeroCrossings) / 2
	snap.EnergyKWh = ledger.KWh()

	return snap
}
