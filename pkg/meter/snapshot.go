package meter

import "math"

// WsPerKWh is the number of watt-seconds in one kilowatt-hour.
const WsPerKWh = 3_600_000

// Snapshot holds the metrics of one completed window. Values are single
// precision like the meter's display path; the energy total is kept in
// double precision so it stays exact over long runtimes.
type Snapshot struct {
	Window        uint64 // Sequence number, starting at 1
	Samples       int    // Pairs accumulated in this window
	ZeroCrossings int    // Gated voltage sign changes

	VRMS          float32 // V
	IRMS          float32 // A
	ActivePower   float32 // W, magnitude only
	ApparentPower float32 // VA
	PowerFactor   float32 // Percent, 0..100
	Frequency     float32 // Hz
	EnergyKWh     float64 // Cumulative since start
}

// Ledger is the cumulative energy counter. It never decreases.
type Ledger struct {
	ws float64
}

// Add integrates one window of power. Windows are nominally one second long,
// so watts map directly to watt-seconds. Negative and NaN inputs are ignored.
func (l *Ledger) Add(watts float32) {
	w := float64(watts)
	if !(w > 0) || math.IsInf(w, 1) {
		return
	}
	l.ws += w
}

// Carry raises the total to ws, used to continue a total from an earlier
// ledger. Lower, NaN and infinite values are ignored.
func (l *Ledger) Carry(ws float64) {
	if ws > l.ws && !math.IsInf(ws, 1) {
		l.ws = ws
	}
}

// WattSeconds returns the total energy in Ws.
func (l *Ledger) WattSeconds() float64 {
	return l.ws
}

// KWh returns the total energy in kWh.
func (l *Ledger) KWh() float64 {
	return l.ws / WsPerKWh
}
