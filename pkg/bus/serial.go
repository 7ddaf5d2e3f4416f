package bus

import (
	"fmt"

	"go.bug.st/serial"
)

// PortInfo describes a serial port present on the host.
type PortInfo struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]PortInfo, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]PortInfo, 0, len(ports))
	for _, name := range ports {
		result = append(result, PortInfo{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// OpenSerial opens a serial port in 8N1 mode at baudRate.
func OpenSerial(name string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}

var (
	_ Port      = serial.Port(nil)
	_ RS485Port = serial.Port(nil)
)
