package main

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goemon/pkg/acquisition"
	"github.com/itohio/goemon/pkg/config"
)

// showSettingsDialog displays a settings dialog with tabs for the editable configuration.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSourceTab(state),
		createCalibrationTab(state),
		createThresholdsTab(state),
		createSimulatorTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(560, 420))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(560, 420))
	d.Show()
}

// save writes the configuration and restarts a running pipeline.
func save(state *appState) {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(err, state.window)
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return
	}
	restart(state)
}

// createSourceTab creates the acquisition source tab.
func createSourceTab(state *appState) *container.TabItem {
	sourceSelect := widget.NewSelect([]string{config.SourceSimulator, config.SourceSerial}, nil)
	sourceSelect.SetSelected(state.cfg.Acquisition.Source)

	// Map display name to actual port name
	portOptions := []string{}
	portMap := make(map[string]string)
	if ports, err := acquisition.Ports(); err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentDisplay := state.cfg.Serial.Port
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == state.cfg.Serial.Port {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentDisplay != "" {
		portOptions = append(portOptions, currentDisplay)
		portMap[currentDisplay] = currentDisplay
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	windowEntry := widget.NewEntry()
	windowEntry.SetText(strconv.Itoa(state.cfg.Acquisition.WindowSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Source", Widget: sourceSelect},
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
			{Text: "Window (samples)", Widget: windowEntry},
		},
		OnSubmit: func() {
			if sourceSelect.Selected != "" {
				state.cfg.Acquisition.Source = sourceSelect.Selected
			}
			if portSelect.Selected != "" {
				port := portMap[portSelect.Selected]
				if port == "" {
					port = portSelect.Selected
				}
				state.cfg.Serial.Port = port
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil {
				state.cfg.Serial.BaudRate = baud
			}
			if n, err := strconv.Atoi(windowEntry.Text); err == nil {
				state.cfg.Acquisition.WindowSamples = n
			}
			save(state)
		},
	}

	return container.NewTabItem("Source", form)
}

// createCalibrationTab creates the calibration tab.
func createCalibrationTab(state *appState) *container.TabItem {
	vOffsetEntry := widget.NewEntry()
	vOffsetEntry.SetText(strconv.Itoa(state.cfg.Calibration.VOffset))

	iOffsetEntry := widget.NewEntry()
	iOffsetEntry.SetText(strconv.Itoa(state.cfg.Calibration.IOffset))

	calVEntry := widget.NewEntry()
	calVEntry.SetText(fmt.Sprintf("%g", state.cfg.Calibration.CalV))

	calIEntry := widget.NewEntry()
	calIEntry.SetText(fmt.Sprintf("%g", state.cfg.Calibration.CalI))

	invertCheck := widget.NewCheck("", nil)
	invertCheck.SetChecked(state.cfg.Calibration.PowerSign < 0)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Voltage Offset (counts)", Widget: vOffsetEntry},
			{Text: "Current Offset (counts)", Widget: iOffsetEntry},
			{Text: "Volts per Count", Widget: calVEntry},
			{Text: "Amps per Count", Widget: calIEntry},
			{Text: "Invert Current Polarity", Widget: invertCheck},
		},
		OnSubmit: func() {
			if v, err := strconv.Atoi(vOffsetEntry.Text); err == nil {
				state.cfg.Calibration.VOffset = v
			}
			if v, err := strconv.Atoi(iOffsetEntry.Text); err == nil {
				state.cfg.Calibration.IOffset = v
			}
			if v, err := strconv.ParseFloat(calVEntry.Text, 32); err == nil {
				state.cfg.Calibration.CalV = float32(v)
			}
			if v, err := strconv.ParseFloat(calIEntry.Text, 32); err == nil {
				state.cfg.Calibration.CalI = float32(v)
			}
			state.cfg.Calibration.PowerSign = 1
			if invertCheck.Checked {
				state.cfg.Calibration.PowerSign = -1
			}
			save(state)
		},
	}

	return container.NewTabItem("Calibration", form)
}

// createThresholdsTab creates the noise gate tab.
func createThresholdsTab(state *appState) *container.TabItem {
	vNoiseEntry := widget.NewEntry()
	vNoiseEntry.SetText(fmt.Sprintf("%g", state.cfg.Thresholds.VNoise))

	iNoiseEntry := widget.NewEntry()
	iNoiseEntry.SetText(fmt.Sprintf("%g", state.cfg.Thresholds.INoise))

	hystEntry := widget.NewEntry()
	hystEntry.SetText(strconv.Itoa(state.cfg.Thresholds.ZeroCrossHysteresis))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Voltage Noise (V)", Widget: vNoiseEntry},
			{Text: "Current Noise (A)", Widget: iNoiseEntry},
			{Text: "Zero-cross Hysteresis (counts)", Widget: hystEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(vNoiseEntry.Text, 32); err == nil {
				state.cfg.Thresholds.VNoise = float32(v)
			}
			if v, err := strconv.ParseFloat(iNoiseEntry.Text, 32); err == nil {
				state.cfg.Thresholds.INoise = float32(v)
			}
			if v, err := strconv.Atoi(hystEntry.Text); err == nil {
				state.cfg.Thresholds.ZeroCrossHysteresis = v
			}
			save(state)
		},
	}

	return container.NewTabItem("Thresholds", form)
}

// createSimulatorTab creates the simulated mains tab.
func createSimulatorTab(state *appState) *container.TabItem {
	entries := []struct {
		label string
		value *float64
		entry *widget.Entry
	}{
		{label: "Voltage (V RMS)", value: &state.cfg.Simulator.VRMS},
		{label: "Current (A RMS)", value: &state.cfg.Simulator.IRMS},
		{label: "Frequency (Hz)", value: &state.cfg.Simulator.Frequency},
		{label: "Phase (deg)", value: &state.cfg.Simulator.PhaseDeg},
		{label: "Noise (counts)", value: &state.cfg.Simulator.NoiseCounts},
	}

	form := &widget.Form{}
	for i := range entries {
		entries[i].entry = widget.NewEntry()
		entries[i].entry.SetText(fmt.Sprintf("%g", *entries[i].value))
		form.Append(entries[i].label, entries[i].entry)
	}
	form.OnSubmit = func() {
		for _, e := range entries {
			if v, err := strconv.ParseFloat(e.entry.Text, 64); err == nil {
				*e.value = v
			}
		}
		save(state)
	}

	return container.NewTabItem("Simulator", form)
}
