package bus

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// Simulated buses for running without hardware and for tests.

var errSimulated = errors.New("simulated bus failure")

// SimADC is an ADC with settable raw counts.
type SimADC struct {
	mu   sync.Mutex
	raw  map[int]uint16
	Fail bool
}

// NewSimADC creates an ADC reading 0 on every channel.
func NewSimADC() *SimADC {
	return &SimADC{raw: make(map[int]uint16)}
}

// Set sets the raw count of channel.
func (a *SimADC) Set(channel int, raw uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raw[channel] = raw
}

// SetVoltage sets channel to the count closest to volts.
func (a *SimADC) SetVoltage(channel int, volts, vref float32, resolution int) {
	a.Set(channel, uint16(volts/Quantum(vref, resolution)+0.5))
}

// ReadRaw implements ADC.
func (a *SimADC) ReadRaw(channel int) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Fail {
		return 0, errSimulated
	}
	return a.raw[channel], nil
}

// SimThermometer is a Dallas bus with settable temperatures.
type SimThermometer struct {
	mu         sync.Mutex
	temps      []float32
	resolution int
	Requests   int
}

// NewSimThermometer creates a bus with one device per temperature.
func NewSimThermometer(temps ...float32) *SimThermometer {
	return &SimThermometer{temps: temps}
}

// Set sets the temperature of the device at index.
func (s *SimThermometer) Set(index int, tempC float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.temps) <= index {
		s.temps = append(s.temps, DisconnectedC)
	}
	s.temps[index] = tempC
}

// Unplug removes every device from the bus.
func (s *SimThermometer) Unplug() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temps = nil
}

func (s *SimThermometer) Begin() error { return nil }

func (s *SimThermometer) SetResolution(bits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolution = bits
	return nil
}

// Resolution returns the last resolution set.
func (s *SimThermometer) Resolution() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolution
}

func (s *SimThermometer) RequestTemperatures() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests++
	return nil
}

func (s *SimThermometer) TempC(index int) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.temps) {
		return DisconnectedC
	}
	return s.temps[index]
}

// SimPort is a serial port whose peer is simulated by callbacks. Reads return
// (0, nil) once the pending input is consumed, as a timed out serial read does.
type SimPort struct {
	// Reply produces the peer's answer to each write.
	Reply func(written []byte) []byte
	// Stream produces what a free-running peer has sent by the time input is read
	// after ResetInputBuffer.
	Stream func() []byte
	// FailWrite makes every write fail.
	FailWrite bool

	mu      sync.Mutex
	pending []byte
	written []byte
	rts     bool
}

// Feed appends data to the pending input.
func (p *SimPort) Feed(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, data...)
}

// Written returns everything written so far.
func (p *SimPort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written...)
}

func (p *SimPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *SimPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWrite {
		return 0, errSimulated
	}
	p.written = append(p.written, b...)
	if p.Reply != nil {
		p.pending = append(p.pending, p.Reply(append([]byte(nil), b...))...)
	}
	return len(b), nil
}

func (p *SimPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
	if p.Stream != nil {
		p.pending = p.Stream()
	}
	return nil
}

func (p *SimPort) SetReadTimeout(time.Duration) error { return nil }

func (p *SimPort) Drain() error { return nil }

func (p *SimPort) SetRTS(rts bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rts = rts
	return nil
}

func (p *SimPort) Close() error { return nil }

// SimDirection records every direction change of an RS-485 line.
type SimDirection struct {
	mu      sync.Mutex
	current Direction
	History []Direction
}

func (s *SimDirection) SetDirection(d Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = d
	s.History = append(s.History, d)
	return nil
}

// Current returns the line state.
func (s *SimDirection) Current() Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SimPulse is a PulseTimer returning a settable echo width.
type SimPulse struct {
	mu    sync.Mutex
	width time.Duration
}

// NewSimPulse creates a pulse timer returning width.
func NewSimPulse(width time.Duration) *SimPulse {
	return &SimPulse{width: width}
}

// Set changes the echo width. Zero simulates a timeout.
func (s *SimPulse) Set(width time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
}

func (s *SimPulse) Ping(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width > timeout {
		return 0, nil
	}
	return s.width, nil
}

// SimFrameStream returns a Stream emitting marker-framed distance readings.
func SimFrameStream(distance func() (uint16, bool)) func() []byte {
	return func() []byte {
		d, ok := distance()
		if !ok {
			return nil
		}
		return []byte{FrameMarker, byte(d >> 8), byte(d), 0x00}
	}
}

// SimSlave is a Modbus RTU slave with a holding register bank.
type SimSlave struct {
	SlaveID byte

	mu        sync.Mutex
	registers map[uint16]uint16
	writes    []uint16
	Offline   bool
}

// NewSimSlave creates a slave with the given registers.
func NewSimSlave(id byte, registers map[uint16]uint16) *SimSlave {
	if registers == nil {
		registers = make(map[uint16]uint16)
	}
	return &SimSlave{SlaveID: id, registers: registers}
}

// Register returns a register value.
func (s *SimSlave) Register(addr uint16) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registers[addr]
}

// SetRegister sets a register value.
func (s *SimSlave) SetRegister(addr, value uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registers[addr] = value
}

// Writes returns the addresses written, in order.
func (s *SimSlave) Writes() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.writes...)
}

// Reply answers an RTU request frame. Frames for other slaves, corrupted frames
// and requests while offline get no answer.
func (s *SimSlave) Reply(req []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Offline || len(req) < 8 || req[0] != s.SlaveID {
		return nil
	}
	body := req[:len(req)-2]
	if binary.LittleEndian.Uint16(req[len(req)-2:]) != crc16(body) {
		return nil
	}

	fc := req[1]
	addr := binary.BigEndian.Uint16(req[2:])
	arg := binary.BigEndian.Uint16(req[4:])

	var resp []byte
	switch fc {
	case 0x03:
		resp = []byte{s.SlaveID, fc, byte(2 * arg)}
		for i := uint16(0); i < arg; i++ {
			v, ok := s.registers[addr+i]
			if !ok {
				return rtuFrame([]byte{s.SlaveID, fc | 0x80, 0x02})
			}
			resp = binary.BigEndian.AppendUint16(resp, v)
		}
	case 0x06:
		s.registers[addr] = arg
		s.writes = append(s.writes, addr)
		resp = append([]byte(nil), body...)
	default:
		return rtuFrame([]byte{s.SlaveID, fc | 0x80, 0x01})
	}
	return rtuFrame(resp)
}

func rtuFrame(pdu []byte) []byte {
	return binary.LittleEndian.AppendUint16(pdu, crc16(pdu))
}

// crc16 is the Modbus RTU CRC.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

var (
	_ ADC           = (*SimADC)(nil)
	_ Thermometer   = (*SimThermometer)(nil)
	_ Port          = (*SimPort)(nil)
	_ RS485Port     = (*SimPort)(nil)
	_ DirectionLine = (*SimDirection)(nil)
	_ PulseTimer    = (*SimPulse)(nil)
	_ Thermometer   = (*PeriphOneWire)(nil)
	_ PulseTimer    = (*GPIOPulse)(nil)
	_ DirectionLine = (*GPIODirection)(nil)
	_ DirectionLine = (*RTSDirection)(nil)
)
