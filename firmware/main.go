//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/goemon/pkg/acquisition"
	"github.com/itohio/goemon/pkg/config"
	"github.com/itohio/goemon/pkg/meter"
	"github.com/itohio/goemon/pkg/output"
)

var (
	adcVoltage machine.ADC
	adcCurrent machine.ADC
	uart       = machine.UART0

	// Timing
	samplePeriod = time.Second / SAMPLE_RATE_HZ
	nextSample   time.Time
)

func main() {
	// Configure ADC pins and set up ADCs with highest resolution
	PIN_VOLTAGE_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_CURRENT_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})

	adcVoltage = machine.ADC{Pin: PIN_VOLTAGE_ADC}
	adcCurrent = machine.ADC{Pin: PIN_CURRENT_ADC}

	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	adcVoltage.Configure(adcConfig)
	adcCurrent.Configure(adcConfig)

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	if STREAM_RAW {
		streamRaw()
	}

	cfg := config.Default()
	cfg.Acquisition.BufferPairs = BUFFER_PAIRS
	cfg.Acquisition.WindowSamples = WINDOW_SAMPLES

	buf, err := acquisition.NewDoubleBuffer(cfg.Acquisition.BufferPairs)
	if err != nil {
		halt(err)
	}

	m, err := meter.New(cfg, buf)
	if err != nil {
		// Defaults were substituted; keep running.
		println(err.Error())
	}

	text, err := output.NewTextSink(uart)
	if err != nil {
		halt(err)
	}
	output.Attach(m, text)

	nextSample = time.Now()

	// Main loop: sample when due, drain ready halves in between.
	for {
		now := time.Now()
		if !now.Before(nextSample) {
			buf.Push(readPair())
			nextSample = nextSample.Add(samplePeriod)
			// Too far behind to catch up: resynchronise.
			if now.Sub(nextSample) > samplePeriod*BUFFER_PAIRS/2 {
				nextSample = now
			}
			continue
		}
		m.Poll()
	}
}

// readPair reads both channels back to back.
func readPair() acquisition.RawSamplePair {
	// Get returns a left-aligned 16-bit value.
	return acquisition.RawSamplePair{
		Voltage: adcVoltage.Get() >> 4,
		Current: adcCurrent.Get() >> 4,
	}
}

// streamRaw prints "voltage,current" lines for a host running emon with the
// serial source. It never returns.
func streamRaw() {
	nextSample = time.Now()
	for {
		if time.Now().Before(nextSample) {
			continue
		}
		nextSample = nextSample.Add(samplePeriod)

		p := readPair()
		print(p.Voltage)
		print(",")
		print(p.Current)
		print("\n")
	}
}

func halt(err error) {
	for {
		println(err.Error())
		time.Sleep(time.Second)
	}
}
