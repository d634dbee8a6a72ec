package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks an invalid configuration value.
var ErrConfig = errors.New("config error")

// Acquisition sources.
const (
	SourceSimulator = "simulator"
	SourceSerial    = "serial"
)

// Config represents the application configuration.
type Config struct {
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Thresholds  ThresholdConfig   `yaml:"thresholds"`
	Serial      SerialConfig      `yaml:"serial"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Simulator   SimulatorConfig   `yaml:"simulator"`
}

// AcquisitionConfig describes the sample stream and the accumulation window.
type AcquisitionConfig struct {
	SampleRate    int           `yaml:"sample_rate"`    // Sample pairs per second (fixed by hardware)
	BufferPairs   int           `yaml:"buffer_pairs"`   // Circular buffer capacity in sample pairs, split in two halves
	WindowSamples int           `yaml:"window_samples"` // Pairs per reporting window
	PollInterval  time.Duration `yaml:"poll_interval"`  // Idle time between empty polls
	Source        string        `yaml:"source"`         // "simulator" or "serial"
}

// CalibrationConfig holds the per-installation calibration. Immutable after init.
type CalibrationConfig struct {
	VOffset   int     `yaml:"v_offset"`   // Voltage DC bias in ADC counts
	IOffset   int     `yaml:"i_offset"`   // Current DC bias in ADC counts
	CalV      float32 `yaml:"cal_v"`      // Volts per ADC count
	CalI      float32 `yaml:"cal_i"`      // Amps per ADC count
	PowerSign int     `yaml:"power_sign"` // +1 or -1, sensor polarity
}

// ThresholdConfig holds noise gates.
type ThresholdConfig struct {
	VNoise              float32 `yaml:"v_noise"`               // V RMS below this is reported as 0
	INoise              float32 `yaml:"i_noise"`               // A RMS below this is reported as 0
	ZeroCrossHysteresis int     `yaml:"zero_cross_hysteresis"` // ADC counts
	MinApparentPower    float32 `yaml:"min_apparent_power"`    // VA at or below which PF is 0
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port       string `yaml:"port"` // Raw sample input port (source: serial)
	BaudRate   int    `yaml:"baud_rate"`
	OutputPort string `yaml:"output_port"` // Optional console port for update blocks
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // Empty disables the endpoint
}

// SimulatorConfig describes the synthetic mains waveform.
type SimulatorConfig struct {
	VRMS        float64 `yaml:"v_rms"`        // Volts
	IRMS        float64 `yaml:"i_rms"`        // Amps
	Frequency   float64 `yaml:"frequency"`    // Hz
	PhaseDeg    float64 `yaml:"phase_deg"`    // Current lag behind voltage
	NoiseCounts float64 `yaml:"noise_counts"` // Peak noise in ADC counts
}

// Default returns a default configuration matching the reference board.
func Default() *Config {
	return &Config{
		Acquisition: AcquisitionConfig{
			SampleRate:    8000,
			BufferPairs:   64, // 128 interleaved words
			WindowSamples: 8000,
			PollInterval:  100 * time.Microsecond,
			Source:        SourceSimulator,
		},
		Calibration: CalibrationConfig{
			VOffset:   2065,
			IOffset:   2045,
			CalV:      0.727,
			CalI:      0.0136,
			PowerSign: -1,
		},
		Thresholds: ThresholdConfig{
			VNoise:              20.0,
			INoise:              0.05,
			ZeroCrossHysteresis: 100,
			MinApparentPower:    0.5,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 921600,
		},
		Simulator: SimulatorConfig{
			VRMS:        230,
			IRMS:        5,
			Frequency:   50,
			PhaseDeg:    20,
			NoiseCounts: 2,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// HalfDeadline is the time the consumer has to drain one buffer half.
func (a AcquisitionConfig) HalfDeadline() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(a.BufferPairs/2) * time.Second / time.Duration(a.SampleRate)
}

// Validate reports every invalid setting. Each finding wraps ErrConfig.
func (c *Config) Validate() error {
	var errs []error

	if c.Acquisition.WindowSamples <= 0 {
		errs = append(errs, fmt.Errorf("%w: window_samples must be positive, got %d", ErrConfig, c.Acquisition.WindowSamples))
	}
	if c.Acquisition.BufferPairs < 2 || c.Acquisition.BufferPairs%2 != 0 {
		errs = append(errs, fmt.Errorf("%w: buffer_pairs must be even and at least 2, got %d", ErrConfig, c.Acquisition.BufferPairs))
	}
	if c.Acquisition.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: sample_rate must be positive, got %d", ErrConfig, c.Acquisition.SampleRate))
	}
	if c.Calibration.CalV == 0 {
		errs = append(errs, fmt.Errorf("%w: cal_v must be non-zero", ErrConfig))
	}
	if c.Calibration.CalI == 0 {
		errs = append(errs, fmt.Errorf("%w: cal_i must be non-zero", ErrConfig))
	}
	if c.Calibration.PowerSign != 1 && c.Calibration.PowerSign != -1 {
		errs = append(errs, fmt.Errorf("%w: power_sign must be 1 or -1, got %d", ErrConfig, c.Calibration.PowerSign))
	}
	if !(c.Thresholds.VNoise >= 0) {
		errs = append(errs, fmt.Errorf("%w: v_noise must not be negative, got %g", ErrConfig, c.Thresholds.VNoise))
	}
	if !(c.Thresholds.INoise >= 0) {
		errs = append(errs, fmt.Errorf("%w: i_noise must not be negative, got %g", ErrConfig, c.Thresholds.INoise))
	}
	if !(c.Thresholds.MinApparentPower >= 0) {
		errs = append(errs, fmt.Errorf("%w: min_apparent_power must not be negative, got %g", ErrConfig, c.Thresholds.MinApparentPower))
	}
	if c.Thresholds.ZeroCrossHysteresis < 0 {
		errs = append(errs, fmt.Errorf("%w: zero_cross_hysteresis must not be negative, got %d", ErrConfig, c.Thresholds.ZeroCrossHysteresis))
	}
	switch c.Acquisition.Source {
	case SourceSimulator, SourceSerial:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown source %q", ErrConfig, c.Acquisition.Source))
	}

	return errors.Join(errs...)
}

// ensureDefaults ensures that all required fields have default values if missing.
// Zero calibration factors are left alone so Validate can report them.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Acquisition.SampleRate == 0 {
		c.Acquisition.SampleRate = def.Acquisition.SampleRate
	}
	if c.Acquisition.BufferPairs == 0 {
		c.Acquisition.BufferPairs = def.Acquisition.BufferPairs
	}
	if c.Acquisition.WindowSamples == 0 {
		c.Acquisition.WindowSamples = def.Acquisition.WindowSamples
	}
	if c.Acquisition.PollInterval == 0 {
		c.Acquisition.PollInterval = def.Acquisition.PollInterval
	}
	if c.Acquisition.Source == "" {
		c.Acquisition.Source = def.Acquisition.Source
	}

	if c.Calibration.PowerSign == 0 {
		c.Calibration.PowerSign = def.Calibration.PowerSign
	}

	if c.Thresholds.MinApparentPower == 0 {
		c.Thresholds.MinApparentPower = def.Thresholds.MinApparentPower
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Simulator.Frequency == 0 {
		c.Simulator.Frequency = def.Simulator.Frequency
	}
}
