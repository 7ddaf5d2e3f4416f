package bus

import (
	"time"

	"github.com/itohio/gosat/pkg/config"
)

// mmPerMicrosecond is the speed of sound at 24 °C, for simulated echoes.
const mmPerMicrosecond = (331.1 + 24.0*0.606) / 1000.0

// Simulated provides simulated buses preloaded from the mock configuration so
// the satellite runs without hardware.
type Simulated struct {
	cfg    config.MockConfig
	adcCfg config.ADCConfig

	ADC         *SimADC
	Therm       *SimThermometer
	Ports       []*SimPort
	Pulses      []*SimPulse
	Slaves      []*SimSlave
	analogInput *AnalogInput
}

// NewSimulated creates simulated buses for cfg. Analog channels of conductivity
// and turbidity sensors are preset to the mock voltages.
func NewSimulated(cfg *config.Config) *Simulated {
	s := &Simulated{
		cfg:    cfg.Mock,
		adcCfg: cfg.ADC,
		ADC:    NewSimADC(),
		Therm:  NewSimThermometer(cfg.Mock.TemperatureC),
	}
	s.analogInput = NewAnalogInput(s.ADC, cfg.ADC.VRef, cfg.ADC.Resolution)

	for _, sc := range cfg.Sensors {
		if sc.Analog == nil {
			continue
		}
		switch sc.Type {
		case config.TypeEC10:
			s.ADC.SetVoltage(sc.Analog.Channel, cfg.Mock.ConductivityV, cfg.ADC.VRef, cfg.ADC.Resolution)
		case config.TypeTurbidity:
			s.ADC.SetVoltage(sc.Analog.Channel, cfg.Mock.TurbidityV, cfg.ADC.VRef, cfg.ADC.Resolution)
		}
	}
	return s
}

func (s *Simulated) Analog() *AnalogInput {
	return s.analogInput
}

func (s *Simulated) Thermometer(config.OneWireConfig) (Thermometer, error) {
	return s.Therm, nil
}

// Serial returns a port streaming framed distance readings.
func (s *Simulated) Serial(config.SerialConfig) (Port, error) {
	d := s.cfg.DistanceMM
	port := &SimPort{Stream: SimFrameStream(func() (uint16, bool) { return d, true })}
	s.Ports = append(s.Ports, port)
	return port, nil
}

// Pulse returns a pulse timer echoing from the mock distance.
func (s *Simulated) Pulse(config.PulseConfig) (PulseTimer, error) {
	travel := float64(s.cfg.DistanceMM) / mmPerMicrosecond
	p := NewSimPulse(time.Duration(2*travel) * time.Microsecond)
	s.Pulses = append(s.Pulses, p)
	return p, nil
}

// Modbus returns a master talking to a simulated URM14.
func (s *Simulated) Modbus(cfg config.ModbusConfig) (*RS485, error) {
	dist := uint32(s.cfg.DistanceMM) * 10
	if dist > 0xFFFF {
		dist = 0xFFFF
	}
	slave := NewSimSlave(cfg.SlaveID, map[uint16]uint16{
		0x02: uint16(cfg.SlaveID),
		0x05: uint16(dist),
	})
	s.Slaves = append(s.Slaves, slave)

	session, err := NewSession(cfg.SlaveID, cfg.BaudRate, &SimDirection{})
	if err != nil {
		return nil, err
	}
	return NewRS485(&SimPort{Reply: slave.Reply}, session, cfg.Timeout), nil
}

func (s *Simulated) Close() error { return nil }
