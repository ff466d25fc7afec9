//go:build tinygo

package main

import "time"

const (
	// Scan configuration
	STEP_DELAY    = 250 * time.Millisecond // Pause after each reading so the stream can be followed by eye
	STARTUP_DELAY = 2 * time.Second        // Time for the host to attach to the USB console

	// ADC configuration
	ADC_RESOLUTION = 12 // ADC resolution in bits (12-bit = 0-4095)

	// Serial configuration
	// Line format: "<input>\t<label>\t<value>\n", at most "20\tMUX2_CH15\t4095\n" = 17 bytes.
	// 39 lines per cycle at one line per STEP_DELAY is well below any baud rate.
	UART_BAUD_RATE = 115200
)
