package bus

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// Direction is the half-duplex state of an RS-485 transceiver.
type Direction int

const (
	Receive Direction = iota
	Transmit
)

func (d Direction) String() string {
	if d == Transmit {
		return "transmit"
	}
	return "receive"
}

// DirectionLine drives the driver-enable/receiver-enable pins of a transceiver.
type DirectionLine interface {
	SetDirection(d Direction) error
}

// RS485Port is the serial port under a Modbus session.
type RS485Port interface {
	io.ReadWriter
	Drain() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Session is a Modbus RTU master talking to one slave over RS-485.
type Session struct {
	SlaveID  byte
	BaudRate int

	line DirectionLine

	mu  sync.Mutex
	dir Direction
}

// NewSession creates a session and puts the line in receive mode.
func NewSession(slaveID byte, baudRate int, line DirectionLine) (*Session, error) {
	s := &Session{SlaveID: slaveID, BaudRate: baudRate, line: line}
	if err := s.setDirection(Receive); err != nil {
		return nil, err
	}
	return s, nil
}

// Direction returns the current transceiver direction.
func (s *Session) Direction() Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

func (s *Session) setDirection(d Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.line.SetDirection(d); err != nil {
		return fmt.Errorf("failed to switch RS-485 to %s: %w", d, err)
	}
	s.dir = d
	return nil
}

// transmit holds the line in transmit mode while fn runs and returns it to
// receive mode on every exit path.
func (s *Session) transmit(fn func() error) (err error) {
	defer func() {
		if rerr := s.setDirection(Receive); rerr != nil && err == nil {
			err = rerr
		}
	}()
	if err := s.setDirection(Transmit); err != nil {
		return err
	}
	return fn()
}

// rs485Transporter sends RTU frames with direction switching around the write.
type rs485Transporter struct {
	session *Session
	port    RS485Port
	timeout time.Duration
}

// Send implements modbus.Transporter.
func (t *rs485Transporter) Send(request []byte) ([]byte, error) {
	if err := t.port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("failed to clear input: %w", err)
	}

	err := t.session.transmit(func() error {
		if _, err := t.port.Write(request); err != nil {
			return fmt.Errorf("failed to write request: %w", err)
		}
		// The transceiver must stay enabled until the last stop bit leaves.
		if err := t.port.Drain(); err != nil {
			return fmt.Errorf("failed to drain request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return t.readResponse(request)
}

func (t *rs485Transporter) readResponse(request []byte) ([]byte, error) {
	if err := t.port.SetReadTimeout(t.timeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	head := make([]byte, 3)
	n, err := readFull(t.port, head)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if n == 0 {
		return nil, ErrNoResponse
	}
	if n < len(head) {
		return nil, ErrShortResponse
	}

	size := responseLength(request, head)
	adu := make([]byte, size)
	copy(adu, head)
	n, err = readFull(t.port, adu[len(head):])
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if n < size-len(head) {
		return nil, ErrShortResponse
	}
	return adu, nil
}

// responseLength returns the RTU frame size announced by the first three bytes.
func responseLength(request, head []byte) int {
	const crc = 2
	fc := head[1]
	switch {
	case fc&0x80 != 0:
		return 3 + crc
	case fc == modbus.FuncCodeReadHoldingRegisters, fc == modbus.FuncCodeReadInputRegisters:
		return 3 + int(head[2]) + crc
	case fc == modbus.FuncCodeWriteSingleRegister, fc == modbus.FuncCodeWriteMultipleRegisters:
		return 6 + crc
	default:
		// Echo-sized answer for anything else the sensors do not use.
		return len(request)
	}
}

// RS485 performs register transactions, one at a time, on a Session.
type RS485 struct {
	session *Session

	mu     sync.Mutex
	client modbus.Client
}

// NewRS485 creates a Modbus RTU master on port.
func NewRS485(port RS485Port, session *Session, timeout time.Duration) *RS485 {
	packager := modbus.NewRTUClientHandler("")
	packager.SlaveId = session.SlaveID

	transporter := &rs485Transporter{
		session: session,
		port:    port,
		timeout: timeout,
	}

	return &RS485{
		session: session,
		client:  modbus.NewClient2(packager, transporter),
	}
}

// Session returns the underlying session.
func (m *RS485) Session() *Session {
	return m.session
}

// WriteRegister writes one holding register.
func (m *RS485) WriteRegister(addr, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.client.WriteSingleRegister(addr, value); err != nil {
		return fmt.Errorf("write register 0x%02X: %w", addr, err)
	}
	return nil
}

// ReadRegisters reads count holding registers starting at addr.
func (m *RS485) ReadRegisters(addr, count uint16) ([]uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.client.ReadHoldingRegisters(addr, count)
	if err != nil {
		return nil, fmt.Errorf("read registers 0x%02X: %w", addr, err)
	}
	if len(raw) != int(count)*2 {
		return nil, fmt.Errorf("read registers 0x%02X: %w", addr, ErrShortResponse)
	}

	values := make([]uint16, count)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return values, nil
}

// GPIODirection drives a transceiver whose DE and /RE pins share one GPIO.
type GPIODirection struct {
	pin gpio.PinIO
}

// NewGPIODirection looks up the named pin. host.Init must have been called.
func NewGPIODirection(name string) (*GPIODirection, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown direction pin %q", name)
	}
	return &GPIODirection{pin: pin}, nil
}

// SetDirection sets the pin high to transmit and low to receive.
func (g *GPIODirection) SetDirection(d Direction) error {
	return g.pin.Out(d == Transmit)
}

// RTSDirection drives the transceiver from the serial port's RTS line.
type RTSDirection struct {
	port interface{ SetRTS(bool) error }
}

// NewRTSDirection creates a direction line on the RTS output of port.
func NewRTSDirection(port interface{ SetRTS(bool) error }) *RTSDirection {
	return &RTSDirection{port: port}
}

// SetDirection asserts RTS to transmit.
func (r *RTSDirection) SetDirection(d Direction) error {
	return r.port.SetRTS(d == Transmit)
}
