package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRS485(t *testing.T, slave *SimSlave) (*RS485, *SimPort, *SimDirection) {
	t.Helper()
	port := &SimPort{Reply: slave.Reply}
	line := &SimDirection{}
	session, err := NewSession(0x11, 9600, line)
	require.NoError(t, err)
	return NewRS485(port, session, 10*time.Millisecond), port, line
}

func TestRS485_ReadRegisters(t *testing.T) {
	slave := NewSimSlave(0x11, map[uint16]uint16{0x05: 12345, 0x06: 7})
	m, _, line := newTestRS485(t, slave)

	values, err := m.ReadRegisters(0x05, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{12345, 7}, values)

	assert.Equal(t, Receive, line.Current())
	assert.Equal(t, []Direction{Receive, Transmit, Receive}, line.History)
}

func TestRS485_WriteRegister(t *testing.T) {
	slave := NewSimSlave(0x11, nil)
	m, port, _ := newTestRS485(t, slave)

	require.NoError(t, m.WriteRegister(0x08, 0x03))
	assert.Equal(t, uint16(0x03), slave.Register(0x08))
	assert.Equal(t, []uint16{0x08}, slave.Writes())

	// 0x11 0x06 0x0008 0x0003 + CRC
	written := port.Written()
	require.Len(t, written, 8)
	assert.Equal(t, []byte{0x11, 0x06, 0x00, 0x08, 0x00, 0x03}, written[:6])
}

func TestRS485_FailuresReturnLineToReceive(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(slave *SimSlave, port *SimPort)
		check   func(t *testing.T, err error)
	}{
		{
			name:    "no response",
			prepare: func(slave *SimSlave, _ *SimPort) { slave.Offline = true },
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNoResponse) },
		},
		{
			name:    "write failure",
			prepare: func(_ *SimSlave, port *SimPort) { port.FailWrite = true },
			check:   func(t *testing.T, err error) { assert.Error(t, err) },
		},
		{
			name:    "exception response",
			prepare: func(*SimSlave, *SimPort) {},
			check: func(t *testing.T, err error) {
				var mbErr *modbus.ModbusError
				require.True(t, errors.As(err, &mbErr))
				assert.Equal(t, byte(modbus.ExceptionCodeIllegalDataAddress), mbErr.ExceptionCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slave := NewSimSlave(0x11, nil)
			m, port, line := newTestRS485(t, slave)
			tt.prepare(slave, port)

			_, err := m.ReadRegisters(0x05, 1)
			tt.check(t, err)

			assert.Equal(t, Receive, line.Current())
			assert.Equal(t, Receive, m.Session().Direction())
		})
	}
}

func TestRS485_WrongSlaveIsSilent(t *testing.T) {
	slave := NewSimSlave(0x12, map[uint16]uint16{0x05: 1})
	m, _, line := newTestRS485(t, slave)

	_, err := m.ReadRegisters(0x05, 1)
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.Equal(t, Receive, line.Current())
}

func TestCRC16(t *testing.T) {
	// Read holding register 0x0000 x1 from slave 1: 01 03 00 00 00 01 84 0A
	assert.Equal(t, uint16(0x0A84), crc16([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}))
}

func TestResponseLength(t *testing.T) {
	assert.Equal(t, 7, responseLength(nil, []byte{0x11, 0x03, 0x02}))
	assert.Equal(t, 8, responseLength(nil, []byte{0x11, 0x06, 0x00}))
	assert.Equal(t, 5, responseLength(nil, []byte{0x11, 0x83, 0x02}))
}
