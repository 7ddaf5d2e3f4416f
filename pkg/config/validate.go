package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Validate checks the configuration for missing identities and miswired sensors.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Satellite),
		validation.Field(&c.Link),
		validation.Field(&c.Bluetooth),
		validation.Field(&c.ADC),
		validation.Field(&c.Poll),
		validation.Field(&c.Sensors, validation.Required),
	)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Sensors))
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sensor %d (%s): %w", i, s.Name, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("sensor %d: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func (s SatelliteConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required, validation.Length(1, 32)),
		validation.Field(&s.Version, validation.Required),
	)
}

func (l LinkConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.BaudRate, validation.Required, validation.Min(1200)),
	)
}

func (b BluetoothConfig) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.BaudRate, validation.Required, validation.Min(1200)),
		validation.Field(&b.MAC, is.MAC),
	)
}

func (a ADCConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.VRef, validation.Required, validation.Min(float32(0))),
		validation.Field(&a.Resolution, validation.Required, validation.Min(1), validation.Max(24)),
	)
}

func (p PollConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Interval, validation.Required),
	)
}

// Validate checks that the sensor has the bus block its type needs.
func (s SensorConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Type, validation.Required, validation.In(
			TypeA01NYUB, TypeJSNSR04T, TypeURM14, TypeDS18B20, TypeEC10, TypeTurbidity,
		)),
		validation.Field(&s.Reference, is.URL),
		validation.Field(&s.Analog, validation.When(s.Type == TypeEC10 || s.Type == TypeTurbidity, validation.Required)),
		validation.Field(&s.OneWire, validation.When(s.Type == TypeDS18B20, validation.Required)),
		validation.Field(&s.Serial, validation.When(s.Type == TypeA01NYUB, validation.Required)),
		validation.Field(&s.Pulse, validation.When(s.Type == TypeJSNSR04T, validation.Required)),
		validation.Field(&s.Modbus, validation.When(s.Type == TypeURM14, validation.Required)),
		validation.Field(&s.Calibration),
	)
}

func (a AnalogConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Channel, validation.Min(0)),
		validation.Field(&a.R2, validation.When(a.R1 != 0, validation.Required)),
	)
}

func (o OneWireConfig) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Index, validation.Min(0)),
		validation.Field(&o.Resolution, validation.Min(9), validation.Max(12)),
	)
}

func (s SerialConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required),
	)
}

func (p PulseConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Trigger, validation.Required),
		validation.Field(&p.Echo, validation.Required),
	)
}

func (m ModbusConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Port, validation.Required),
		validation.Field(&m.SlaveID, validation.Required, validation.Max(byte(247))),
		validation.Field(&m.Direction, validation.Required),
	)
}

func (c CalibrationConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Curve, validation.In(CurveA, CurveB)),
	)
}
