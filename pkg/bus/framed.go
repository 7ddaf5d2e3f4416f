package bus

import (
	"context"
	"fmt"
	"time"
)

// FrameMarker starts every frame of a framed serial ultrasonic sensor.
const FrameMarker = 0xFF

// Framed reads marker-prefixed frames from a free-running serial sensor.
type Framed struct {
	port         Port
	responseTime time.Duration
}

// NewFramed creates a framed reader that waits responseTime for a fresh frame
// after clearing stale input.
func NewFramed(port Port, responseTime time.Duration) *Framed {
	return &Framed{port: port, responseTime: responseTime}
}

// ReadFrame discards buffered input, waits for the sensor to emit a frame and
// returns its big-endian 16-bit payload. ErrNoFrame is returned when the first
// byte is not the marker or the payload is incomplete.
func (f *Framed) ReadFrame(ctx context.Context) (uint16, error) {
	if err := f.port.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("failed to clear input: %w", err)
	}
	if err := sleep(ctx, f.responseTime); err != nil {
		return 0, err
	}
	if err := f.port.SetReadTimeout(f.responseTime); err != nil {
		return 0, fmt.Errorf("failed to set read timeout: %w", err)
	}

	var marker [1]byte
	if n, err := readFull(f.port, marker[:]); err != nil || n != 1 || marker[0] != FrameMarker {
		return 0, ErrNoFrame
	}

	var data [2]byte
	if n, err := readFull(f.port, data[:]); err != nil || n != 2 {
		return 0, fmt.Errorf("%w: %v", ErrNoFrame, ErrShortResponse)
	}
	return uint16(data[0])<<8 | uint16(data[1]), nil
}

// readFull reads into buf until it is full, an error occurs or a read times out.
// Serial ports signal a timeout with (0, nil), which io.ReadFull would spin on.
func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
	return total, nil
}
