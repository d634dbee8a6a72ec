package main

import (
	"fmt"

	"go.bug.st/serial"
)

// openSerial opens a console port for update blocks.
func openSerial(port string, baudRate int) (serial.Port, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open output port %s: %w", port, err)
	}
	return p, nil
}
