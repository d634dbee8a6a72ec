package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/itohio/goemon/pkg/config"
)

// Waveform synthesises raw sample pairs for a sinusoidal mains supply as the
// converter would see it through the configured offsets and scale factors.
type Waveform struct {
	vAmp, iAmp float64 // peak amplitude in ADC counts
	vOff, iOff float64
	omega      float64 // radians per sample
	phase      float64 // current lag in radians
	noise      float64
	rng        *rand.Rand
	n          uint64
}

// NewWaveform creates a deterministic waveform generator.
func NewWaveform(sim config.SimulatorConfig, cal config.CalibrationConfig, sampleRate int) *Waveform {
	w := &Waveform{
		vOff:  float64(cal.VOffset),
		iOff:  float64(cal.IOffset),
		phase: sim.PhaseDeg * math.Pi / 180,
		noise: sim.NoiseCounts,
		rng:   rand.New(rand.NewPCG(0x454d, 0x4f4e)),
	}
	if sampleRate > 0 {
		w.omega = 2 * math.Pi * sim.Frequency / float64(sampleRate)
	}
	if cal.CalV != 0 {
		w.vAmp = sim.VRMS * math.Sqrt2 / float64(cal.CalV)
	}
	if cal.CalI != 0 {
		w.iAmp = sim.IRMS * math.Sqrt2 / float64(cal.CalI)
	}
	// Reproduce the sensor orientation the power sign corrects for.
	if cal.PowerSign < 0 {
		w.iAmp = -w.iAmp
	}
	return w
}

// Next returns the next sample pair.
func (w *Waveform) Next() RawSamplePair {
	x := w.omega * float64(w.n)
	w.n++

	v := w.vOff + w.vAmp*math.Sin(x) + w.jitter()
	i := w.iOff + w.iAmp*math.Sin(x-w.phase) + w.jitter()

	return RawSamplePair{Voltage: toRaw(v), Current: toRaw(i)}
}

// Fill overwrites dst with consecutive sample pairs.
func (w *Waveform) Fill(dst []RawSamplePair) {
	for k := range dst {
		dst[k] = w.Next()
	}
}

func (w *Waveform) jitter() float64 {
	if w.noise == 0 {
		return 0
	}
	return (w.rng.Float64()*2 - 1) * w.noise
}

func toRaw(x float64) uint16 {
	x = math.Round(x)
	if x < 0 {
		return 0
	}
	if x > MaxRaw {
		return MaxRaw
	}
	return uint16(x)
}

// Simulator is a free-running producer that pushes a synthetic waveform into
// a DoubleBuffer at the configured sample rate.
type Simulator struct {
	rate     int
	tick     time.Duration
	buf      *DoubleBuffer
	waveform *Waveform

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewSimulator creates a simulator from the configuration.
func NewSimulator(cfg *config.Config) (*Simulator, error) {
	buf, err := NewDoubleBuffer(cfg.Acquisition.BufferPairs)
	if err != nil {
		return nil, err
	}
	if cfg.Acquisition.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample_rate must be positive", config.ErrConfig)
	}

	return &Simulator{
		rate:     cfg.Acquisition.SampleRate,
		tick:     time.Millisecond,
		buf:      buf,
		waveform: NewWaveform(cfg.Simulator, cfg.Calibration, cfg.Acquisition.SampleRate),
	}, nil
}

// Connect starts producing samples.
func (s *Simulator) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.connected = true

	go s.generate(ctx, s.done)

	return nil
}

// Close stops the producer and waits for it to exit.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	s.cancel()
	<-s.done
	s.connected = false

	return nil
}

// IsConnected returns whether the simulator is producing.
func (s *Simulator) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Events returns the consumer view of the buffer.
func (s *Simulator) Events() Events {
	return s.buf
}

// Done is closed when the producer exits. It is nil before the first Connect.
func (s *Simulator) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Err always returns nil: the simulator only stops on Close.
func (s *Simulator) Err() error {
	return nil
}

// Buffer returns the underlying buffer.
func (s *Simulator) Buffer() *DoubleBuffer {
	return s.buf
}

// generate keeps the produced sample count in step with wall-clock time.
func (s *Simulator) generate(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	start := time.Now()
	var produced int64

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due := int64(now.Sub(start).Seconds()*float64(s.rate)) - produced
			if due > int64(s.buf.Cap()) {
				// Hardware would have overwritten everything older than one buffer.
				slog.Debug("simulator catching up", "skipped", due-int64(s.buf.Cap()))
				produced += due - int64(s.buf.Cap())
				due = int64(s.buf.Cap())
			}
			for ; due > 0; due-- {
				s.buf.Push(s.waveform.Next())
				produced++
			}
		}
	}
}
