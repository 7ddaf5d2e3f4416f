package bus

import (
	"fmt"
	"io"
	"log"
	"sync"

	"periph.io/x/periph/host"

	"github.com/itohio/gosat/pkg/config"
)

// Hardware opens the real buses of the satellite through periph and the
// host serial ports.
type Hardware struct {
	analog *AnalogInput

	mu      sync.Mutex
	wires   map[string]*PeriphOneWire
	closers []io.Closer
}

// NewHardware initialises periph host drivers and the IIO ADC.
func NewHardware(adc config.ADCConfig) (*Hardware, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise host drivers: %w", err)
	}
	return &Hardware{
		analog: NewAnalogInput(NewIIOADC(adc.Device), adc.VRef, adc.Resolution),
		wires:  make(map[string]*PeriphOneWire),
	}, nil
}

func (h *Hardware) Analog() *AnalogInput {
	return h.analog
}

// Thermometer returns the named 1-Wire bus, shared by every sensor on it.
func (h *Hardware) Thermometer(cfg config.OneWireConfig) (Thermometer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if w, ok := h.wires[cfg.Bus]; ok {
		return w, nil
	}
	w := NewPeriphOneWire(cfg.Bus)
	h.wires[cfg.Bus] = w
	h.closers = append(h.closers, w)
	return w, nil
}

func (h *Hardware) Serial(cfg config.SerialConfig) (Port, error) {
	port, err := OpenSerial(cfg.Port, cfg.BaudRate)
	if err != nil {
		return nil, err
	}
	h.track(port)
	return port, nil
}

func (h *Hardware) Pulse(cfg config.PulseConfig) (PulseTimer, error) {
	return NewGPIOPulse(cfg.Trigger, cfg.Echo)
}

// Modbus opens an RS-485 port and its direction line.
func (h *Hardware) Modbus(cfg config.ModbusConfig) (*RS485, error) {
	port, err := OpenSerial(cfg.Port, cfg.BaudRate)
	if err != nil {
		return nil, err
	}
	h.track(port)

	var line DirectionLine
	if cfg.Direction == config.DirectionRTS {
		line = NewRTSDirection(port)
	} else {
		gpioLine, err := NewGPIODirection(cfg.Direction)
		if err != nil {
			return nil, err
		}
		line = gpioLine
	}

	session, err := NewSession(cfg.SlaveID, cfg.BaudRate, line)
	if err != nil {
		return nil, err
	}
	return NewRS485(port, session, cfg.Timeout), nil
}

func (h *Hardware) track(c io.Closer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closers = append(h.closers, c)
}

// Close releases every opened bus.
func (h *Hardware) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			log.Printf("Error closing bus: %v", err)
		}
	}
	h.closers = nil
	return nil
}
