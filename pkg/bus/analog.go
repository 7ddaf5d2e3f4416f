package bus

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// ADC reads raw conversion counts from an analog input.
type ADC interface {
	ReadRaw(channel int) (uint16, error)
}

// AnalogInput converts raw ADC counts to volts.
type AnalogInput struct {
	adc     ADC
	quantum float32
}

// NewAnalogInput creates an analog input for an ADC referenced to vref volts with
// the given resolution in bits.
func NewAnalogInput(adc ADC, vref float32, resolution int) *AnalogInput {
	return &AnalogInput{
		adc:     adc,
		quantum: Quantum(vref, resolution),
	}
}

// Quantum returns the voltage step of one ADC count: vref / 2^bits.
func Quantum(vref float32, resolution int) float32 {
	return vref / math32.Pow(2, float32(resolution))
}

// Quantum returns the volts per count of this input.
func (a *AnalogInput) Quantum() float32 {
	return a.quantum
}

// Sample returns the voltage on channel. A failed conversion reads as 0 V, which
// the owning sensor interprets as an absent device.
func (a *AnalogInput) Sample(channel int) float32 {
	return float32(a.Raw(channel)) * a.quantum
}

// Raw returns the raw count on channel, or 0 if the conversion failed.
func (a *AnalogInput) Raw(channel int) uint16 {
	raw, err := a.adc.ReadRaw(channel)
	if err != nil {
		log.Printf("Failed to read ADC channel %d: %v", channel, err)
		return 0
	}
	return raw
}

// DividerFactor returns F = R2 / (R1 + R2) for a resistive divider between the
// sensor output and the ADC input. A zero R1 means no divider.
func DividerFactor(r1, r2 float32) float32 {
	if r1 == 0 {
		return 1
	}
	return r2 / (r1 + r2)
}

// IIOADC reads channels from a Linux industrial I/O device.
type IIOADC struct {
	dir string
}

// NewIIOADC creates an ADC backed by an IIO sysfs directory such as
// /sys/bus/iio/devices/iio:device0.
func NewIIOADC(dir string) *IIOADC {
	return &IIOADC{dir: dir}
}

// ReadRaw reads in_voltage<channel>_raw.
func (a *IIOADC) ReadRaw(channel int) (uint16, error) {
	name := filepath.Join(a.dir, fmt.Sprintf("in_voltage%d_raw", channel))
	data, err := os.ReadFile(name)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid raw value in %s: %w", name, err)
	}
	return uint16(v), nil
}
