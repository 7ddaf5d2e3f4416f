package sensor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/itohio/gosat/pkg/bus"
)

// Curve selects the turbidity calibration.
type Curve int

const (
	// CurveA is the quadratic curve; the sensor is disconnected when it goes
	// negative.
	CurveA Curve = iota
	// CurveB is the linear curve gated by a minimum sensor voltage.
	CurveB
)

// ParseCurve parses "a" or "b".
func ParseCurve(s string) (Curve, error) {
	switch s {
	case "a", "A", "":
		return CurveA, nil
	case "b", "B":
		return CurveB, nil
	default:
		return 0, fmt.Errorf("unknown turbidity curve %q", s)
	}
}

const (
	// TurbNoValue is reported when the sensor is out of range or unplugged.
	TurbNoValue float32 = -1
	// turbMin is the lowest valid curve A turbidity.
	turbMin float32 = 0.0
	// turbMinVoltage is the lowest valid curve B sensor voltage.
	turbMinVoltage float32 = 2.5
)

// TurbidityProbe is an analog turbidity probe behind a voltage divider.
type TurbidityProbe struct {
	desc    Descriptor
	analog  *bus.AnalogInput
	channel int
	divider float32
	curve   Curve
}

var _ Sensor = (*TurbidityProbe)(nil)

// NewTurbidity creates a turbidity module. r1 and r2 describe the divider in
// front of the ADC; r1 == 0 means none.
func NewTurbidity(name string, analog *bus.AnalogInput, channel int, r1, r2 float32, curve Curve) *TurbidityProbe {
	return &TurbidityProbe{
		desc: Descriptor{
			Name:     name,
			Model:    "Gravity turbidity",
			Bus:      bus.Analog,
			Address:  strconv.Itoa(channel),
			Quantity: Turbidity,
			NoValue:  TurbNoValue,
		},
		analog:  analog,
		channel: channel,
		divider: bus.DividerFactor(r1, r2),
		curve:   curve,
	}
}

func (s *TurbidityProbe) Descriptor() Descriptor { return s.desc }

// Setup checks the sensor reads in range.
func (s *TurbidityProbe) Setup(ctx context.Context) error {
	_, ok := s.Read(ctx, NoCompensation)
	return verify(s.desc, ok, "No Gravity turbidity sensor detected...")
}

// SensorVoltage returns the probe output before the divider.
func (s *TurbidityProbe) SensorVoltage() float32 {
	return s.analog.Sample(s.channel) / s.divider
}

// Read returns turbidity in NTU.
func (s *TurbidityProbe) Read(_ context.Context, _ Compensation) (Reading, bool) {
	v := s.SensorVoltage()

	switch s.curve {
	case CurveB:
		if v < turbMinVoltage {
			return noValue(s.desc), false
		}
		return reading(s.desc, TurbidityCurveB(v)), true
	default:
		turb := TurbidityCurveA(v)
		if turb < turbMin {
			return noValue(s.desc), false
		}
		return reading(s.desc, turb), true
	}
}

// TurbidityCurveA is the quadratic voltage to NTU calibration.
func TurbidityCurveA(v float32) float32 {
	return (-1120.4 * (v * v)) + (5742.3 * v) - 4352.9
}

// TurbidityCurveB is the linear voltage to NTU calibration.
func TurbidityCurveB(v float32) float32 {
	return -3169.75*v + 11220.52
}
