package output

import (
	"context"
	"log/slog"

	"github.com/itohio/goemon/pkg/meter"
)

// LogSink emits one structured log record per snapshot.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink logs through logger at level. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: level}
}

func (l *LogSink) Write(s meter.Snapshot) error {
	l.logger.LogAttrs(context.Background(), l.level, "window",
		slog.Uint64("window", s.Window),
		slog.Int("samples", s.Samples),
		slog.Float64("v_rms", float64(s.VRMS)),
		slog.Float64("i_rms", float64(s.IRMS)),
		slog.Float64("active_w", float64(s.ActivePower)),
		slog.Float64("apparent_va", float64(s.ApparentPower)),
		slog.Float64("pf_pct", float64(s.PowerFactor)),
		slog.Float64("freq_hz", float64(s.Frequency)),
		slog.Float64("energy_kwh", s.EnergyKWh),
	)
	return nil
}

// ObserveError logs pipeline errors as warnings.
func (l *LogSink) ObserveError(err error) {
	l.logger.Warn("meter error", "err", err)
}
