package panel

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/itohio/goemon/pkg/meter"
)

// Readout is the text shown in the six readout cells.
type Readout struct {
	Voltage     string
	Current     string
	Power       string
	Energy      string
	PowerFactor string
	Frequency   string
}

// NewReadout formats a snapshot for display. Values are truncated the same
// way as on the meter's console.
func NewReadout(s meter.Snapshot) Readout {
	iInt, iFrac := math32.Modf(s.IRMS)
	eInt := int(s.EnergyKWh)
	eDec := int((s.EnergyKWh - float64(eInt)) * 1000)

	return Readout{
		Voltage:     fmt.Sprintf("V:%d", int(s.VRMS)),
		Current:     fmt.Sprintf("A:%d.%02d", int(iInt), int(iFrac*100)),
		Power:       fmt.Sprintf("W:%d", int(s.ActivePower)),
		Energy:      fmt.Sprintf("E:%d.%03d", eInt, eDec),
		PowerFactor: "PF:" + formatPowerFactor(s.PowerFactor),
		Frequency:   fmt.Sprintf("F:%d", int(s.Frequency)),
	}
}

// Cells returns the readout in display order, two per row.
func (r Readout) Cells() []string {
	return []string{r.Voltage, r.Current, r.Power, r.Energy, r.PowerFactor, r.Frequency}
}

// formatPowerFactor shows a percentage as a ratio with two decimals.
func formatPowerFactor(pct float32) string {
	if pct >= 99.9 {
		return "1.00"
	}
	if pct < 0 {
		pct = 0
	}
	return fmt.Sprintf("0.%02d", int(pct))
}
