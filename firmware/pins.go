//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_RATE_HZ = 8000 // Sample pairs per second, both channels read back to back
	BUFFER_PAIRS   = 64   // Circular buffer, 32 pairs per half
	WINDOW_SAMPLES = 8000 // One report per second

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// ADC pins
	PIN_VOLTAGE_ADC = machine.A0
	PIN_CURRENT_ADC = machine.A1

	// Serial configuration
	// Update blocks are ~60 bytes once per second, so any standard rate works.
	UART_BAUD_RATE = 115200

	// Raw streaming over the USB console: "vvvv,iiii\n" is at most 10 bytes per
	// pair, 80 kB/s at 8 kHz, which the host reads at 921600 baud.
	STREAM_RAW = false
)
