package bus

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/onewire"
	"periph.io/x/periph/conn/onewire/onewirereg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/devices/ds18b20"
)

// DisconnectedC is the temperature a Dallas bus reports for a missing device.
const DisconnectedC float32 = -127

// Thermometer is a bus of Dallas temperature sensors addressed by discovery index.
type Thermometer interface {
	Begin() error
	SetResolution(bits int) error
	RequestTemperatures() error
	// TempC returns the last converted temperature of the device at index, or
	// DisconnectedC.
	TempC(index int) float32
}

// Dallas performs request-and-read transactions on a Thermometer.
type Dallas struct {
	bus Thermometer
}

// NewDallas creates a Dallas adapter.
func NewDallas(bus Thermometer) *Dallas {
	return &Dallas{bus: bus}
}

// Begin discovers the devices on the bus and sets their resolution.
func (d *Dallas) Begin(resolution int) error {
	if err := d.bus.Begin(); err != nil {
		return fmt.Errorf("failed to enumerate 1-wire bus: %w", err)
	}
	if err := d.bus.SetResolution(resolution); err != nil {
		return fmt.Errorf("failed to set resolution: %w", err)
	}
	return nil
}

// RequestAndRead starts a conversion and reads the device at index. The returned
// temperature is DisconnectedC together with ErrDisconnected when the device did
// not answer.
func (d *Dallas) RequestAndRead(index int) (float32, error) {
	if err := d.bus.RequestTemperatures(); err != nil {
		return DisconnectedC, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	t := d.bus.TempC(index)
	if t == DisconnectedC {
		return t, ErrDisconnected
	}
	return t, nil
}

// PeriphOneWire is a Thermometer on a periph 1-Wire bus with DS18B20 devices.
type PeriphOneWire struct {
	name string

	mu         sync.Mutex
	bus        onewire.BusCloser
	devs       []*ds18b20.Dev
	resolution int
}

// NewPeriphOneWire creates a thermometer on the named 1-Wire bus. An empty name
// selects the first registered bus. host.Init must have been called.
func NewPeriphOneWire(name string) *PeriphOneWire {
	return &PeriphOneWire{name: name, resolution: 12}
}

// Begin opens the bus and searches it for devices.
func (p *PeriphOneWire) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bus == nil {
		b, err := onewirereg.Open(p.name)
		if err != nil {
			return fmt.Errorf("failed to open 1-wire bus %q: %w", p.name, err)
		}
		p.bus = b
	}
	return p.search()
}

func (p *PeriphOneWire) search() error {
	addrs, err := p.bus.Search(false)
	if err != nil {
		return fmt.Errorf("1-wire search failed: %w", err)
	}
	p.devs = p.devs[:0]
	for _, addr := range addrs {
		dev, err := ds18b20.New(p.bus, addr, p.resolution)
		if err != nil {
			// Not a DS18B20 family device.
			continue
		}
		p.devs = append(p.devs, dev)
	}
	return nil
}

// SetResolution reconfigures every discovered device.
func (p *PeriphOneWire) SetResolution(bits int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resolution = bits
	if p.bus == nil {
		return nil
	}
	return p.search()
}

// RequestTemperatures starts a conversion on all devices and waits for it.
func (p *PeriphOneWire) RequestTemperatures() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bus == nil {
		return fmt.Errorf("1-wire bus not open")
	}
	return ds18b20.ConvertAll(p.bus, p.resolution)
}

// TempC returns the last conversion of the device at index.
func (p *PeriphOneWire) TempC(index int) float32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.devs) {
		return DisconnectedC
	}
	t, err := p.devs[index].LastTemp()
	if err != nil {
		return DisconnectedC
	}
	return float32(t-physic.ZeroCelsius) / float32(physic.Celsius)
}

// Close releases the bus.
func (p *PeriphOneWire) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bus == nil {
		return nil
	}
	err := p.bus.Close()
	p.bus = nil
	p.devs = nil
	return err
}
