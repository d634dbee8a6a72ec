// Package prom exports meter snapshots as Prometheus metrics.
package prom

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/itohio/goemon/pkg/meter"
	"github.com/itohio/goemon/pkg/output"
)

const metricPrefix = "emon_"

var (
	_ output.Sink          = (*Sink)(nil)
	_ output.ErrorObserver = (*Sink)(nil)
)

// Sink exposes the latest snapshot as gauges and counts windows
// and pipeline errors.
type Sink struct {
	vRMS        prometheus.Gauge
	iRMS        prometheus.Gauge
	active      prometheus.Gauge
	apparent    prometheus.Gauge
	powerFactor prometheus.Gauge
	frequency   prometheus.Gauge
	energy      prometheus.Gauge

	windows prometheus.Counter
	errors  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Sink, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: metricPrefix + name, Help: help})
	}

	p := &Sink{
		vRMS:        gauge("voltage_rms_volts", "RMS voltage of the last window"),
		iRMS:        gauge("current_rms_amperes", "RMS current of the last window"),
		active:      gauge("active_power_watts", "Active power magnitude of the last window"),
		apparent:    gauge("apparent_power_voltamperes", "Apparent power of the last window"),
		powerFactor: gauge("power_factor_percent", "Power factor of the last window"),
		frequency:   gauge("frequency_hertz", "Mains frequency of the last window"),
		energy:      gauge("energy_kwh", "Energy accumulated since start"),
		windows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "windows_total",
			Help: "Completed accumulation windows",
		}),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "errors_total",
				Help: "Pipeline errors by kind",
			},
			[]string{"kind"},
		),
	}

	for _, c := range []prometheus.Collector{
		p.vRMS, p.iRMS, p.active, p.apparent, p.powerFactor, p.frequency, p.energy, p.windows, p.errors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Sink) Write(s meter.Snapshot) error {
	p.vRMS.Set(float64(s.VRMS))
	p.iRMS.Set(float64(s.IRMS))
	p.active.Set(float64(s.ActivePower))
	p.apparent.Set(float64(s.ApparentPower))
	p.powerFactor.Set(float64(s.PowerFactor))
	p.frequency.Set(float64(s.Frequency))
	p.energy.Set(s.EnergyKWh)
	p.windows.Inc()
	return nil
}

// ObserveError counts err by kind.
func (p *Sink) ObserveError(err error) {
	kind := "other"
	switch {
	case errors.Is(err, meter.ErrOverrun):
		kind = "overrun"
	case errors.Is(err, meter.ErrConfig):
		kind = "config"
	}
	p.errors.WithLabelValues(kind).Inc()
}
