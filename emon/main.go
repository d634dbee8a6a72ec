package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itohio/goemon/pkg/config"
)

type opts struct {
	configPath string
	source     string
	port       string
	outputPort string
	metrics    string
	window     int
	gui        bool

	logLevel string
	logJSON  bool
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "emon",
		Short: "Single-phase energy meter",
		Long: `emon samples mains voltage and current, reduces them once per window to
RMS voltage and current, active and apparent power, power factor and frequency,
and integrates active power into an energy total.

Samples come from the built-in simulator or from an ADC board streaming
"voltage,current" lines over a serial port.

Examples:
  emon --source simulator --metrics-addr :9100
  emon --source serial --port /dev/ttyACM0 --output-port /dev/ttyUSB0
  emon --gui`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o)
		},
	}

	root.Flags().StringVarP(&o.configPath, "config", "c", "config.yaml", "configuration file path")
	root.Flags().StringVar(&o.source, "source", "", "sample source: simulator or serial (overrides config)")
	root.Flags().StringVarP(&o.port, "port", "p", "", "serial port for raw samples (overrides config)")
	root.Flags().StringVar(&o.outputPort, "output-port", "", "serial port for update blocks (overrides config)")
	root.Flags().StringVar(&o.metrics, "metrics-addr", "", "listen address for /metrics, e.g. :9100 (overrides config)")
	root.Flags().IntVar(&o.window, "window", 0, "samples per window (overrides config)")
	root.Flags().BoolVar(&o.gui, "gui", false, "show the readout window")
	root.Flags().StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.Flags().BoolVar(&o.logJSON, "log-json", false, "log as JSON instead of text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, o opts) error {
	logger, err := newLogger(cmd.ErrOrStderr(), o.logLevel, o.logJSON)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, o)

	if err := cfg.Validate(); err != nil {
		// The meter substitutes defaults for unusable settings.
		slog.Warn("configuration has invalid settings", "err", err)
	}

	if o.gui {
		return runGUI(cmd.Context(), cfg, o.configPath)
	}
	return runHeadless(cmd.Context(), cfg, cmd.OutOrStdout())
}

// applyOverrides copies set flags over the loaded configuration.
func applyOverrides(cfg *config.Config, o opts) {
	if o.source != "" {
		cfg.Acquisition.Source = o.source
	}
	if o.port != "" {
		cfg.Serial.Port = o.port
	}
	if o.outputPort != "" {
		cfg.Serial.OutputPort = o.outputPort
	}
	if o.metrics != "" {
		cfg.Metrics.Listen = o.metrics
	}
	if o.window > 0 {
		cfg.Acquisition.WindowSamples = o.window
	}
}
