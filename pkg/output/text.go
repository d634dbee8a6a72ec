package output

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/chewxy/math32"

	"github.com/itohio/goemon/pkg/meter"
)

// Banner is written once when a TextSink starts.
const Banner = "System Online.\r\n"

// TextSink writes the plain-text update block used on the meter's UART
// console to any writer.
type TextSink struct {
	w io.Writer
}

// NewTextSink writes the banner and returns a sink writing to w.
func NewTextSink(w io.Writer) (*TextSink, error) {
	if _, err := io.WriteString(w, Banner); err != nil {
		return nil, fmt.Errorf("failed to write banner: %w", err)
	}
	return &TextSink{w: w}, nil
}

func (t *TextSink) Write(s meter.Snapshot) error {
	if _, err := io.WriteString(t.w, FormatUpdate(s)); err != nil {
		return fmt.Errorf("failed to write update: %w", err)
	}
	return nil
}

// FormatUpdate renders a snapshot as an update block. Values are truncated,
// not rounded: current to 2 decimals, energy to 3.
//
//	--- UPDATE ---
//	V: 230| I: 5.01| W: 1150| E: 0.012| PF: 99| F: 50
func FormatUpdate(s meter.Snapshot) string {
	iInt, iDec := split32(s.IRMS, 100)
	eInt, eDec := split64(s.EnergyKWh, 1000)

	var b strings.Builder
	b.WriteString("\r\n--- UPDATE ---\r\n")
	fmt.Fprintf(&b, "V: %d", int(s.VRMS))
	fmt.Fprintf(&b, "| I: %d.%02d", iInt, iDec)
	fmt.Fprintf(&b, "| W: %d", int(s.ActivePower))
	fmt.Fprintf(&b, "| E: %d.%03d", eInt, eDec)
	fmt.Fprintf(&b, "| PF: %d", int(s.PowerFactor))
	fmt.Fprintf(&b, "| F: %d", int(s.Frequency))
	b.WriteString("\r\n")
	return b.String()
}

func split32(x float32, scale float32) (int, int) {
	ip, frac := math32.Modf(x)
	return int(ip), int(frac * scale)
}

func split64(x float64, scale float64) (int, int) {
	ip, frac := math.Modf(x)
	return int(ip), int(frac * scale)
}
