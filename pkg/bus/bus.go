// Package bus holds the per-protocol primitives the sensor modules are built on:
// analog sampling, Dallas 1-Wire thermometers, AT-command UARTs, framed serial,
// pulse-echo GPIO timing and Modbus RTU over half-duplex RS-485.
package bus

import (
	"context"
	"errors"
	"time"
)

// Kind names the bus a sensor is attached to.
type Kind int

const (
	Analog Kind = iota
	OneWire
	UART
	Pulse
	Modbus
)

func (k Kind) String() string {
	switch k {
	case Analog:
		return "analog"
	case OneWire:
		return "onewire"
	case UART:
		return "uart"
	case Pulse:
		return "pulse"
	case Modbus:
		return "modbus"
	default:
		return "unknown"
	}
}

var (
	// ErrDisconnected is returned when a bus reports its reserved "no device" value.
	ErrDisconnected = errors.New("device disconnected")
	// ErrNoResponse is returned when nothing arrived within the read window.
	ErrNoResponse = errors.New("no response")
	// ErrATError is returned when an AT command answers with ERROR.
	ErrATError = errors.New("AT command failed")
	// ErrNoFrame is returned when a framed serial read did not see the start marker.
	ErrNoFrame = errors.New("no frame marker")
	// ErrShortResponse is returned when a response ends before its expected length.
	ErrShortResponse = errors.New("short response")
)

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
