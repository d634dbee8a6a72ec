package output

import (
	"errors"
	"log/slog"

	"github.com/itohio/goemon/pkg/meter"
)

// Sink consumes snapshots. Write is called synchronously on the polling
// goroutine in emission order, so it should not block for long.
type Sink interface {
	Write(s meter.Snapshot) error
}

// ErrorObserver is implemented by sinks that also track pipeline errors.
type ErrorObserver interface {
	ObserveError(err error)
}

// Multi fans a snapshot out to every sink. All sinks are written even if one
// fails; the failures are joined.
type Multi []Sink

func (m Multi) Write(s meter.Snapshot) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ObserveError forwards err to every sink that observes errors.
func (m Multi) ObserveError(err error) {
	for _, sink := range m {
		if o, ok := sink.(ErrorObserver); ok {
			o.ObserveError(err)
		}
	}
}

// Attach registers sinks on an EnergyMeter. Sink failures are logged and
// never stop the meter.
func Attach(m meter.EnergyMeter, sinks ...Sink) {
	all := Multi(sinks)

	m.OnSnapshot(func(s meter.Snapshot) {
		if err := all.Write(s); err != nil {
			slog.Warn("output sink failed", "window", s.Window, "err", err)
		}
	})
	m.OnError(all.ObserveError)
}
