// Package modem drives a GSM modem over a serial line with AT commands.
package modem

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the byte stream the AT transport runs on. go.bug.st/serial ports
// satisfy it directly.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Opener acquires a Port at the given baud rate.
type Opener func(name string, baudRate int) (Port, error)

// OpenSerial opens a real serial device with 8N1 framing.
func OpenSerial(name string, baudRate int) (Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s at %d bps: %w", name, baudRate, err)
	}
	return port, nil
}

// ListPorts returns the serial device names visible to the OS.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
