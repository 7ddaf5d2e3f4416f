package sensor

import (
	"context"
	"time"

	"github.com/itohio/gosat/pkg/bus"
)

const (
	// A01NYUBNoValue is reported when no frame was received.
	A01NYUBNoValue float32 = -257 / 10.0
	// A01NYUBResponseTime is how long the sensor needs to emit a fresh frame.
	A01NYUBResponseTime = 150 * time.Millisecond
)

// A01NYUB is a waterproof ultrasonic rangefinder streaming 0xFF-framed
// distances over a UART.
type A01NYUB struct {
	desc   Descriptor
	framed *bus.Framed
}

var _ Sensor = (*A01NYUB)(nil)

// NewA01NYUB creates a rangefinder module reading frames from port.
func NewA01NYUB(name, address string, port bus.Port, responseTime time.Duration) *A01NYUB {
	if responseTime == 0 {
		responseTime = A01NYUBResponseTime
	}
	return &A01NYUB{
		desc: Descriptor{
			Name:     name,
			Model:    "A01NYUB",
			Bus:      bus.UART,
			Address:  address,
			Quantity: Distance,
			NoValue:  A01NYUBNoValue,
		},
		framed: bus.NewFramed(port, responseTime),
	}
}

func (s *A01NYUB) Descriptor() Descriptor { return s.desc }

// Setup checks that the sensor streams frames.
func (s *A01NYUB) Setup(ctx context.Context) error {
	_, ok := s.Read(ctx, WithTemperature(25))
	return verify(s.desc, ok, "No A01NYUB distance sensor detected, check wiring...")
}

// Read returns the distance in mm. The sensor compensates temperature itself.
func (s *A01NYUB) Read(ctx context.Context, _ Compensation) (Reading, bool) {
	d, err := s.framed.ReadFrame(ctx)
	if err != nil {
		return noValue(s.desc), false
	}
	return reading(s.desc, float32(d)), true
}
