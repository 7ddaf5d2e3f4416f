package sensor

import (
	"context"
	"fmt"
	"log"

	"github.com/chewxy/math32"

	"github.com/itohio/gosat/pkg/bus"
)

// URM14 registers.
const (
	URM14RegID       uint16 = 0x02
	URM14RegDistance uint16 = 0x05
	URM14RegExtTemp  uint16 = 0x07
	URM14RegControl  uint16 = 0x08
)

// URM14 control register bits.
const (
	// URM14TempExternal selects the external temperature register for compensation.
	URM14TempExternal uint16 = 1 << 0
	// URM14TempCompOff disables temperature compensation when set.
	URM14TempCompOff uint16 = 1 << 1
	// URM14MeasurePassive selects triggered measurements instead of free-running.
	URM14MeasurePassive uint16 = 1 << 2
	// URM14MeasureTrigger requests one measurement in passive mode.
	URM14MeasureTrigger uint16 = 1 << 3

	// URM14DefaultControl is auto measure mode with compensation off.
	URM14DefaultControl = URM14TempCompOff | URM14TempExternal
)

const (
	// URM14NoValue is reported on any Modbus failure.
	URM14NoValue float32 = 65535 / 10.0
	// URM14SlaveID is the factory slave address.
	URM14SlaveID byte = 0x11
	// URM14BaudRate is the factory line speed.
	URM14BaudRate = 9600
)

// URM14 is an RS-485 Modbus ultrasonic rangefinder.
type URM14 struct {
	desc    Descriptor
	mb      *bus.RS485
	control uint16
}

var _ Sensor = (*URM14)(nil)

// NewURM14 creates a rangefinder module on a Modbus master. control is written
// to the control register at setup.
func NewURM14(name string, mb *bus.RS485, control uint16) *URM14 {
	return &URM14{
		desc: Descriptor{
			Name:     name,
			Model:    "URM14",
			Bus:      bus.Modbus,
			Address:  fmt.Sprintf("0x%02X", mb.Session().SlaveID),
			Quantity: Distance,
			NoValue:  URM14NoValue,
		},
		mb:      mb,
		control: control,
	}
}

func (s *URM14) Descriptor() Descriptor { return s.desc }

// Setup writes the control word.
func (s *URM14) Setup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return setupFault(s.desc, "setup cancelled", err)
	}
	if err := s.mb.WriteRegister(URM14RegControl, s.control); err != nil {
		return setupFault(s.desc, "Modbus : Config could not be written to UMR14 sensor, check wiring.", err)
	}
	return nil
}

// Read returns the distance in mm.
//
// With compensation enabled on the external source, the reference temperature
// is written first. In passive mode a measurement is triggered before reading.
// Neither applies to URM14DefaultControl.
func (s *URM14) Read(ctx context.Context, comp Compensation) (Reading, bool) {
	if ctx.Err() != nil {
		return noValue(s.desc), false
	}

	if s.control&URM14TempCompOff == 0 && s.control&URM14TempExternal != 0 && comp.Valid {
		if err := s.mb.WriteRegister(URM14RegExtTemp, tenths(comp.TemperatureC)); err != nil {
			log.Printf("Failed to write %s compensation temperature: %v", s.desc.Name, err)
			return noValue(s.desc), false
		}
	}

	if s.control&URM14MeasurePassive != 0 {
		if err := s.mb.WriteRegister(URM14RegControl, s.control|URM14MeasureTrigger); err != nil {
			log.Printf("Failed to trigger %s: %v", s.desc.Name, err)
			return noValue(s.desc), false
		}
	}

	values, err := s.mb.ReadRegisters(URM14RegDistance, 1)
	if err != nil {
		log.Printf("Failed to read %s: %v", s.desc.Name, err)
		return noValue(s.desc), false
	}
	return reading(s.desc, float32(values[0])/10.0), true
}

// tenths encodes °C as a signed register value in 0.1 °C.
func tenths(tempC float32) uint16 {
	return uint16(int16(math32.Round(tempC * 10)))
}
