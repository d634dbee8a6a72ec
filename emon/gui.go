package main

import (
	"context"
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goemon/pkg/config"
	"github.com/itohio/goemon/pkg/output"
	"github.com/itohio/goemon/pkg/panel"
)

// appState holds the application state.
type appState struct {
	ctx        context.Context
	cfg        *config.Config
	configPath string
	sinks      []output.Sink

	window     fyne.Window
	panel      *panel.MeterWidget
	connectBtn *widget.Button
	status     *widget.Label

	chain    *pipeline // Current pipeline (nil if not connected)
	energyWs float64   // Energy total carried across reconnects
}

// runGUI shows the readout window until it is closed or ctx is cancelled.
func runGUI(ctx context.Context, cfg *config.Config, configPath string) error {
	sinks, stopMetrics, err := startMetrics(ctx, cfg.Metrics.Listen)
	if err != nil {
		return err
	}
	defer stopMetrics()

	application := app.NewWithID("com.itohio.goemon")

	window := application.NewWindow("Energy Meter")
	window.Resize(fyne.NewSize(640, 480))
	window.CenterOnScreen()

	state := &appState{
		ctx:        ctx,
		cfg:        cfg,
		configPath: configPath,
		sinks:      sinks,
		window:     window,
		panel:      panel.New(panel.DefaultHistory),
		status:     widget.NewLabel("Disconnected"),
	}

	window.SetContent(container.NewBorder(
		createToolbar(state),
		state.status,
		nil,
		nil,
		state.panel,
	))
	window.SetOnClosed(func() {
		disconnect(state)
	})

	go func() {
		<-ctx.Done()
		fyne.Do(application.Quit)
	}()

	handleConnect(state)
	window.ShowAndRun()
	return nil
}

// createToolbar creates the Connect and Settings buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	return container.NewHBox(connectBtn, settingsBtn)
}

// handleConnect toggles the measurement pipeline.
func handleConnect(state *appState) {
	if state.chain != nil {
		disconnect(state)
		return
	}

	chain, err := startPipeline(state.ctx, state.cfg, nil, state.energyWs, state.sinks...)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to start %s source: %w", state.cfg.Acquisition.Source, err), state.window)
		return
	}
	state.panel.Follow(chain.meter)
	state.chain = chain
	go func() {
		<-chain.Done()
		err := chain.Err()
		if err == nil {
			return
		}
		fyne.Do(func() {
			if state.chain != chain {
				return
			}
			disconnect(state)
			dialog.ShowError(err, state.window)
		})
	}()
	state.connectBtn.SetIcon(theme.LogoutIcon())
	state.status.SetText("Connected: " + state.cfg.Acquisition.Source)
}

func disconnect(state *appState) {
	if state.chain == nil {
		return
	}
	if err := state.chain.Close(); err != nil {
		slog.Warn("pipeline close", "err", err)
	}
	state.energyWs = state.chain.EnergyWs()
	state.chain = nil
	state.connectBtn.SetIcon(theme.LoginIcon())
	state.status.SetText("Disconnected")
}

// restart reconnects so edited settings take effect.
func restart(state *appState) {
	if state.chain == nil {
		return
	}
	disconnect(state)
	handleConnect(state)
}
