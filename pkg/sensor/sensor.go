// Package sensor normalises the satellite's sensors behind one setup/read
// contract. Each module owns its bus adapter and conversion curve and reports
// connectivity with every reading.
package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/itohio/gosat/pkg/bus"
)

// Quantity is the physical quantity a sensor measures.
type Quantity int

const (
	Temperature Quantity = iota
	Distance
	Conductivity
	Turbidity
)

func (q Quantity) String() string {
	switch q {
	case Temperature:
		return "temperature"
	case Distance:
		return "distance"
	case Conductivity:
		return "conductivity"
	case Turbidity:
		return "turbidity"
	default:
		return "unknown"
	}
}

// Unit returns the unit readings of q are expressed in.
func (q Quantity) Unit() string {
	switch q {
	case Temperature:
		return "°C"
	case Distance:
		return "mm"
	case Conductivity:
		return "mS/cm"
	case Turbidity:
		return "NTU"
	default:
		return ""
	}
}

// Descriptor is the static identity of a physical sensor.
type Descriptor struct {
	Name         string
	Model        string
	Manufacturer string
	Reference    string
	Bus          bus.Kind
	Address      string
	Quantity     Quantity
	// NoValue is the reading reported when acquisition fails.
	NoValue float32
}

// Reading is one acquisition result.
type Reading struct {
	Sensor   string
	Quantity Quantity
	Value    float32
}

// Compensation carries optional environment data some conversions depend on.
type Compensation struct {
	TemperatureC float32
	Valid        bool
}

// NoCompensation is used when no reference temperature is available.
var NoCompensation = Compensation{}

// WithTemperature returns a compensation with a reference temperature. The
// Dallas disconnected value is treated as no temperature.
func WithTemperature(tempC float32) Compensation {
	return Compensation{TemperatureC: tempC, Valid: tempC != TempNoValue}
}

// Sensor is implemented by every sensor module.
type Sensor interface {
	Descriptor() Descriptor
	// Setup verifies the sensor is present. It returns a *Fault of kind SetupFault
	// when it is not.
	Setup(ctx context.Context) error
	// Read performs one acquisition. On failure the reading carries the sensor's
	// NoValue and connected is false.
	Read(ctx context.Context, comp Compensation) (r Reading, connected bool)
}

// FaultKind distinguishes boot-time absence from steady-state read failures.
type FaultKind int

const (
	SetupFault FaultKind = iota
	ReadFault
)

func (k FaultKind) String() string {
	if k == SetupFault {
		return "setup"
	}
	return "read"
}

// Fault is a sensor-level failure with the diagnostic reported to operators.
type Fault struct {
	Kind    FaultKind
	Sensor  string
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s %s fault: %s: %v", f.Sensor, f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s %s fault: %s", f.Sensor, f.Kind, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func setupFault(d Descriptor, message string, err error) *Fault {
	return &Fault{Kind: SetupFault, Sensor: d.Name, Message: message, Err: err}
}

// Escalator halts the device. Escalate must not return.
type Escalator interface {
	Escalate(message string)
}

// Boot runs s.Setup and escalates on failure. It returns only when the sensor
// is present.
func Boot(ctx context.Context, s Sensor, esc Escalator) {
	err := s.Setup(ctx)
	if err == nil {
		return
	}

	message := err.Error()
	var f *Fault
	if errors.As(err, &f) {
		message = f.Message
	}
	esc.Escalate(message)

	panic(fmt.Sprintf("escalation returned for %s: %s", s.Descriptor().Name, message))
}

// verify turns a failed setup acquisition into a SetupFault.
func verify(d Descriptor, connected bool, message string) error {
	if !connected {
		return setupFault(d, message, nil)
	}
	return nil
}

func noValue(d Descriptor) Reading {
	return Reading{Sensor: d.Name, Quantity: d.Quantity, Value: d.NoValue}
}

func reading(d Descriptor, v float32) Reading {
	return Reading{Sensor: d.Name, Quantity: d.Quantity, Value: v}
}
