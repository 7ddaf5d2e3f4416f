package sensor

import (
	"fmt"

	"github.com/itohio/gosat/pkg/bus"
	"github.com/itohio/gosat/pkg/config"
)

// Buses opens the bus adapters sensors are attached to. bus.Hardware and
// bus.Simulated implement it.
type Buses interface {
	Analog() *bus.AnalogInput
	Thermometer(cfg config.OneWireConfig) (bus.Thermometer, error)
	Serial(cfg config.SerialConfig) (bus.Port, error)
	Pulse(cfg config.PulseConfig) (bus.PulseTimer, error)
	Modbus(cfg config.ModbusConfig) (*bus.RS485, error)
}

// New builds the sensor module described by cfg.
func New(cfg config.SensorConfig, buses Buses) (Sensor, error) {
	var s Sensor

	switch cfg.Type {
	case config.TypeDS18B20:
		if cfg.OneWire == nil {
			return nil, fmt.Errorf("%s: missing onewire block", cfg.Name)
		}
		therm, err := buses.Thermometer(*cfg.OneWire)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		s = NewDS18B20(cfg.Name, therm, cfg.OneWire.Index, cfg.OneWire.Resolution)

	case config.TypeA01NYUB:
		if cfg.Serial == nil {
			return nil, fmt.Errorf("%s: missing serial block", cfg.Name)
		}
		port, err := buses.Serial(*cfg.Serial)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		s = NewA01NYUB(cfg.Name, cfg.Serial.Port, port, cfg.Serial.ResponseTime)

	case config.TypeJSNSR04T:
		if cfg.Pulse == nil {
			return nil, fmt.Errorf("%s: missing pulse block", cfg.Name)
		}
		pulse, err := buses.Pulse(*cfg.Pulse)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		s = NewJSNSR04T(cfg.Name, cfg.Pulse.Trigger+"/"+cfg.Pulse.Echo, pulse, cfg.Pulse.Timeout)

	case config.TypeURM14:
		if cfg.Modbus == nil {
			return nil, fmt.Errorf("%s: missing modbus block", cfg.Name)
		}
		mb, err := buses.Modbus(*cfg.Modbus)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		s = NewURM14(cfg.Name, mb, cfg.Modbus.Control)

	case config.TypeEC10:
		if cfg.Analog == nil {
			return nil, fmt.Errorf("%s: missing analog block", cfg.Name)
		}
		s = NewEC10(cfg.Name, buses.Analog(), cfg.Analog.Channel, cfg.Calibration.KValue)

	case config.TypeTurbidity:
		if cfg.Analog == nil {
			return nil, fmt.Errorf("%s: missing analog block", cfg.Name)
		}
		curve, err := ParseCurve(cfg.Calibration.Curve)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		s = NewTurbidity(cfg.Name, buses.Analog(), cfg.Analog.Channel, cfg.Analog.R1, cfg.Analog.R2, curve)

	default:
		return nil, fmt.Errorf("%s: unknown sensor type %q", cfg.Name, cfg.Type)
	}

	return withIdentity(s, cfg), nil
}

// NewAll builds every configured sensor, preserving order.
func NewAll(cfgs []config.SensorConfig, buses Buses) ([]Sensor, error) {
	sensors := make([]Sensor, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := New(c, buses)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, s)
	}
	return sensors, nil
}

// identified overrides the manufacturer and reference of a module's descriptor.
type identified struct {
	Sensor
	desc Descriptor
}

func (i identified) Descriptor() Descriptor { return i.desc }

func withIdentity(s Sensor, cfg config.SensorConfig) Sensor {
	if cfg.Manufacturer == "" && cfg.Reference == "" {
		return s
	}
	d := s.Descriptor()
	d.Manufacturer = cfg.Manufacturer
	d.Reference = cfg.Reference
	return identified{Sensor: s, desc: d}
}
