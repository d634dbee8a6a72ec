package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/itohio/goemon/pkg/acquisition"
	"github.com/itohio/goemon/pkg/config"
	"github.com/itohio/goemon/pkg/meter"
	"github.com/itohio/goemon/pkg/output"
)

// pipeline tracks the running source and meter for graceful shutdown.
type pipeline struct {
	source  acquisition.Source
	meter   *meter.Meter
	closers []io.Closer

	cancel  context.CancelFunc
	done    chan struct{} // Closed when the meter goroutine exits
	watched chan struct{} // Closed when the source watcher exits

	errMu sync.Mutex
	err   error // Why the source stopped on its own
}

// newSource creates the configured sample producer.
func newSource(cfg *config.Config) (acquisition.Source, error) {
	switch cfg.Acquisition.Source {
	case config.SourceSerial:
		return acquisition.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Acquisition.BufferPairs)
	case config.SourceSimulator, "":
		return acquisition.NewSimulator(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown source %q", config.ErrConfig, cfg.Acquisition.Source)
	}
}

// startPipeline connects the source and starts metering. console receives
// update blocks when non-nil; an output port from the config is added to it.
// The energy total continues from energyWs.
func startPipeline(ctx context.Context, cfg *config.Config, console io.Writer, energyWs float64, sinks ...output.Sink) (*pipeline, error) {
	source, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	return runPipeline(ctx, cfg, source, console, energyWs, sinks...)
}

// runPipeline is startPipeline with a ready-made source.
func runPipeline(ctx context.Context, cfg *config.Config, source acquisition.Source, console io.Writer, energyWs float64, sinks ...output.Sink) (*pipeline, error) {
	m, err := meter.New(cfg, source.Events())
	if err != nil {
		slog.Warn("meter running with default settings", "err", err)
	}

	m.Accumulator().CarryEnergy(energyWs)

	p := &pipeline{source: source, meter: m}

	all := []output.Sink{output.NewLogSink(slog.Default(), slog.LevelInfo)}
	if console != nil {
		text, err := output.NewTextSink(console)
		if err != nil {
			return nil, err
		}
		all = append(all, text)
	}
	if cfg.Serial.OutputPort != "" {
		port, err := openSerial(cfg.Serial.OutputPort, cfg.Serial.BaudRate)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, port)
		text, err := output.NewTextSink(port)
		if err != nil {
			p.closeSinks()
			return nil, err
		}
		all = append(all, text)
	}
	all = append(all, sinks...)
	output.Attach(m, all...)

	if err := source.Connect(); err != nil {
		p.closeSinks()
		return nil, fmt.Errorf("failed to connect %s source: %w", cfg.Acquisition.Source, err)
	}
	slog.Info("acquisition started",
		"source", cfg.Acquisition.Source,
		"buffer_pairs", cfg.Acquisition.BufferPairs,
		"window_samples", m.Accumulator().Target(),
		"half_deadline", cfg.Acquisition.HalfDeadline(),
	)

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		m.Run(runCtx)
	}()

	// A source that stops on its own stops metering too.
	p.watched = make(chan struct{})
	go func() {
		defer close(p.watched)
		select {
		case <-runCtx.Done():
			return
		case <-source.Done():
		}
		if runCtx.Err() != nil {
			return
		}
		err := source.Err()
		if err == nil {
			err = acquisition.ErrStreamEnded
		}
		slog.Error("acquisition source stopped", "source", cfg.Acquisition.Source, "err", err)
		output.Multi(all).ObserveError(err)

		p.errMu.Lock()
		p.err = err
		p.errMu.Unlock()
		cancel()
	}()

	return p, nil
}

// Done is closed when metering stops, after Close or a source failure.
func (p *pipeline) Done() <-chan struct{} {
	return p.done
}

// Err returns the source failure that stopped metering, or nil.
func (p *pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// EnergyWs returns the energy total. Only valid after Close.
func (p *pipeline) EnergyWs() float64 {
	return p.meter.Accumulator().EnergyWs()
}

// Close stops the meter, then the source, then the sinks.
func (p *pipeline) Close() error {
	if p == nil {
		return nil
	}
	p.cancel()
	<-p.done
	<-p.watched

	err := p.source.Close()
	stats := p.meter.Stats()
	slog.Info("acquisition stopped", "halves", stats.Halves, "windows", stats.Windows, "overruns", stats.Overruns)

	return errors.Join(err, p.closeSinks())
}

func (p *pipeline) closeSinks() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// runHeadless meters until ctx is cancelled or the source fails.
func runHeadless(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	sinks, stopMetrics, err := startMetrics(ctx, cfg.Metrics.Listen)
	if err != nil {
		return err
	}
	defer stopMetrics()

	p, err := startPipeline(ctx, cfg, stdout, 0, sinks...)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-p.Done():
	}
	return errors.Join(p.Err(), p.Close())
}
