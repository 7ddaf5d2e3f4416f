package descriptor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gosat/pkg/bus"
	"github.com/itohio/gosat/pkg/config"
	"github.com/itohio/gosat/pkg/sensor"
)

func TestBuild_JSON(t *testing.T) {
	d := Build(
		config.SatelliteConfig{Name: "CYCLOPEE_SAT", Version: "1.0"},
		Bluetooth{Name: "BUOY1", MAC: "98d3:31:fd1e2c", UART: "38400,0,0"},
		[]sensor.Descriptor{
			{Name: "temperature", Model: "DS18B20"},
			{Name: "distance", Model: "URM14", Manufacturer: "DFRobot", Reference: "https://wiki.dfrobot.com/"},
		},
	)

	data, err := d.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"NAME": "CYCLOPEE_SAT",
		"VERSION": "1.0",
		"BT_NAME": "BUOY1",
		"MAC_ADDRESS": "98d3:31:fd1e2c",
		"UART": "38400,0,0",
		"SENSORS": [
			{"SENSOR_NAME": "DS18B20"},
			{"SENSOR_NAME": "URM14", "CONSTRUCTOR": "DFRobot", "REF": "https://wiki.dfrobot.com/"}
		]
	}`, string(data))
	assert.NotContains(t, string(data), "\n")
}

func TestBuild_NoBluetooth(t *testing.T) {
	d := Build(config.SatelliteConfig{Name: "SAT", Version: "2"}, Bluetooth{}, []sensor.Descriptor{{Name: "x"}})

	data, err := d.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"NAME":"SAT","VERSION":"2","SENSORS":[{"SENSOR_NAME":"x"}]}`, string(data))
}

func TestQueryBluetooth(t *testing.T) {
	replies := map[string]string{
		"AT+NAME?": "+NAME:BUOY1\r\nOK\r\n",
		"AT+ADDR?": "+ADDR:98d3:31:fd1e2c\r\nOK\r\n",
		"AT+UART?": "+UART:38400,0,0\r\nOK\r\n",
	}
	port := &bus.SimPort{Reply: func(w []byte) []byte {
		return []byte(replies[strings.TrimSpace(string(w))])
	}}

	bt, err := QueryBluetooth(context.Background(), bus.NewAT(port), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Bluetooth{Name: "BUOY1", MAC: "98d3:31:fd1e2c", UART: "38400,0,0"}, bt)
}

func TestQueryBluetooth_PartialFailure(t *testing.T) {
	port := &bus.SimPort{Reply: func(w []byte) []byte {
		if strings.HasPrefix(string(w), "AT+ADDR") {
			return []byte("ERROR:(0)\r\n")
		}
		if strings.HasPrefix(string(w), "AT+NAME") {
			return []byte("+NAME:BUOY1\r\n")
		}
		return nil
	}}

	bt, err := QueryBluetooth(context.Background(), bus.NewAT(port), 20*time.Millisecond)
	assert.ErrorIs(t, err, bus.ErrATError)
	assert.Equal(t, Bluetooth{Name: "BUOY1"}, bt)
}

func TestDescriptors(t *testing.T) {
	s := sensor.NewDS18B20("temperature", bus.NewSimThermometer(20), 0, 11)
	ds := Descriptors([]sensor.Sensor{s})
	require.Len(t, ds, 1)
	assert.Equal(t, "DS18B20", ds[0].Model)
}
