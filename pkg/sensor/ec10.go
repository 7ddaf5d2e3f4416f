package sensor

import (
	"context"
	"strconv"

	"github.com/itohio/gosat/pkg/bus"
)

const (
	// ECNoValue is reported when the probe output reads 0 mV.
	ECNoValue float32 = 0.0
	// ecMinVoltage is the probe output of an unplugged sensor, in mV.
	ecMinVoltage float32 = 0.0

	ecRes2 float32 = 7500.0 / 0.66
	ecRef  float32 = 20.0
	// ecTempCoef is the linear conductivity temperature coefficient per °C.
	ecTempCoef float32 = 0.0185
	// ecRefTempC is the temperature conductivity is normalised to.
	ecRefTempC float32 = 25.0
)

// EC10 is an analog K=10 electrical conductivity probe.
type EC10 struct {
	desc    Descriptor
	analog  *bus.AnalogInput
	channel int
	kvalue  float32
}

var _ Sensor = (*EC10)(nil)

// NewEC10 creates a conductivity module on an ADC channel with cell constant
// kvalue (1.0 when zero).
func NewEC10(name string, analog *bus.AnalogInput, channel int, kvalue float32) *EC10 {
	if kvalue == 0 {
		kvalue = 1.0
	}
	return &EC10{
		desc: Descriptor{
			Name:     name,
			Model:    "Gravity EC10",
			Bus:      bus.Analog,
			Address:  strconv.Itoa(channel),
			Quantity: Conductivity,
			NoValue:  ECNoValue,
		},
		analog:  analog,
		channel: channel,
		kvalue:  kvalue,
	}
}

func (s *EC10) Descriptor() Descriptor { return s.desc }

// Setup checks that the probe drives its output.
func (s *EC10) Setup(ctx context.Context) error {
	_, ok := s.RawVoltage(ctx)
	return verify(s.desc, ok, "No Gravity EC sensor detected...")
}

// RawVoltage returns the probe output in mV and whether the probe is connected.
func (s *EC10) RawVoltage(_ context.Context) (float32, bool) {
	mv := s.analog.Sample(s.channel) * 1000
	return mv, mv != ecMinVoltage
}

// Read returns the temperature compensated conductivity in mS/cm. Without a
// reference temperature the value is normalised at 25 °C.
func (s *EC10) Read(ctx context.Context, comp Compensation) (Reading, bool) {
	mv, ok := s.RawVoltage(ctx)
	if !ok {
		return noValue(s.desc), false
	}

	tempC := ecRefTempC
	if comp.Valid {
		tempC = comp.TemperatureC
	}
	return reading(s.desc, ComputeConductivity(mv, tempC, s.kvalue)), true
}

// ComputeConductivity converts a probe voltage in mV to conductivity in mS/cm at
// tempC, normalised to 25 °C.
func ComputeConductivity(voltageMV, tempC, kvalue float32) float32 {
	raw := 1000 * voltageMV / ecRes2 / ecRef
	value := raw * kvalue
	return value / (1.0 + ecTempCoef*(tempC-ecRefTempC))
}
