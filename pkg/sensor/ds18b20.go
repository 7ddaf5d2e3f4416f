package sensor

import (
	"context"
	"fmt"

	"github.com/itohio/gosat/pkg/bus"
)

// TempNoValue is reported by temperature sensors that cannot be read.
const TempNoValue = bus.DisconnectedC

// DS18B20 is a Dallas 1-Wire thermometer.
type DS18B20 struct {
	desc       Descriptor
	dallas     *bus.Dallas
	index      int
	resolution int
}

var _ Sensor = (*DS18B20)(nil)

// NewDS18B20 creates a thermometer module for the device at index on therm.
func NewDS18B20(name string, therm bus.Thermometer, index, resolution int) *DS18B20 {
	return &DS18B20{
		desc: Descriptor{
			Name:     name,
			Model:    "DS18B20",
			Bus:      bus.OneWire,
			Address:  fmt.Sprintf("%d", index),
			Quantity: Temperature,
			NoValue:  TempNoValue,
		},
		dallas:     bus.NewDallas(therm),
		index:      index,
		resolution: resolution,
	}
}

func (s *DS18B20) Descriptor() Descriptor { return s.desc }

// Setup enumerates the bus, applies the resolution and checks the device answers.
func (s *DS18B20) Setup(ctx context.Context) error {
	if err := s.dallas.Begin(s.resolution); err != nil {
		return setupFault(s.desc, "No DS18B20 connected...", err)
	}
	_, ok := s.Read(ctx, NoCompensation)
	return verify(s.desc, ok, "No DS18B20 connected...")
}

// Read requests a conversion and returns the temperature in °C.
func (s *DS18B20) Read(ctx context.Context, _ Compensation) (Reading, bool) {
	if ctx.Err() != nil {
		return noValue(s.desc), false
	}
	t, err := s.dallas.RequestAndRead(s.index)
	if err != nil {
		return noValue(s.desc), false
	}
	return reading(s.desc, t), true
}
