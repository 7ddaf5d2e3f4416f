package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDallas_RequestAndRead(t *testing.T) {
	therm := NewSimThermometer(21.5, 4.0625)
	d := NewDallas(therm)
	require.NoError(t, d.Begin(11))
	assert.Equal(t, 11, therm.Resolution())

	temp, err := d.RequestAndRead(0)
	require.NoError(t, err)
	assert.Equal(t, float32(21.5), temp)

	temp, err = d.RequestAndRead(1)
	require.NoError(t, err)
	assert.Equal(t, float32(4.0625), temp)
	assert.Equal(t, 2, therm.Requests)
}

func TestDallas_Disconnected(t *testing.T) {
	therm := NewSimThermometer(21.5)
	d := NewDallas(therm)

	temp, err := d.RequestAndRead(3)
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Equal(t, DisconnectedC, temp)

	therm.Unplug()
	temp, err = d.RequestAndRead(0)
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Equal(t, DisconnectedC, temp)
}

func TestPeriphOneWire_ClosedBus(t *testing.T) {
	p := NewPeriphOneWire("")
	assert.Error(t, p.RequestTemperatures())
	assert.Equal(t, DisconnectedC, p.TempC(0))
	assert.NoError(t, p.Close())
}
