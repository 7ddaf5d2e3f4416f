package sensor

import (
	"context"
	"log"
	"time"

	"github.com/itohio/gosat/pkg/bus"
)

const (
	// JSNSR04TNoValue is both the timeout distance and the disconnected reading.
	JSNSR04TNoValue float32 = 0
	// soundVelocity in m/s at the fixed 24 °C calibration point.
	soundVelocity float32 = 331.1 + 24.0*0.606
)

// JSNSR04T is a trigger/echo ultrasonic rangefinder.
type JSNSR04T struct {
	desc    Descriptor
	pulse   bus.PulseTimer
	timeout time.Duration
}

var _ Sensor = (*JSNSR04T)(nil)

// NewJSNSR04T creates a rangefinder module on a pulse timer.
func NewJSNSR04T(name, address string, pulse bus.PulseTimer, timeout time.Duration) *JSNSR04T {
	if timeout == 0 {
		timeout = bus.DefaultEchoTimeout
	}
	return &JSNSR04T{
		desc: Descriptor{
			Name:     name,
			Model:    "JSN-SR04T",
			Bus:      bus.Pulse,
			Address:  address,
			Quantity: Distance,
			NoValue:  JSNSR04TNoValue,
		},
		pulse:   pulse,
		timeout: timeout,
	}
}

func (s *JSNSR04T) Descriptor() Descriptor { return s.desc }

// Setup fires one ping and checks an echo came back.
func (s *JSNSR04T) Setup(ctx context.Context) error {
	_, ok := s.Read(ctx, NoCompensation)
	return verify(s.desc, ok, "Distance sensor JSN SR04T not responding.")
}

// Read returns the distance in mm. A missing echo yields 0, which is reported
// as disconnected.
func (s *JSNSR04T) Read(ctx context.Context, _ Compensation) (Reading, bool) {
	width, err := s.pulse.Ping(ctx, s.timeout)
	if err != nil {
		log.Printf("Ping on %s failed: %v", s.desc.Name, err)
		width = 0
	}

	dist := EchoDistance(width)
	if dist == JSNSR04TNoValue {
		return reading(s.desc, dist), false
	}
	return reading(s.desc, dist), true
}

// EchoDistance converts an echo pulse width to a one-way distance in mm.
func EchoDistance(width time.Duration) float32 {
	travel := uint64(width.Microseconds()) / 2
	return (soundVelocity * 1000.0 / 1000000.0) * float32(travel)
}
