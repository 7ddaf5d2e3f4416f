package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "SATELLITE", cfg.Satellite.Name)
	assert.Equal(t, 115200, cfg.Link.BaudRate)
	assert.Equal(t, 38400, cfg.Bluetooth.BaudRate)
	assert.Equal(t, float32(3.3), cfg.ADC.VRef)
	assert.Equal(t, 10, cfg.ADC.Resolution)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)

	require.Len(t, cfg.Sensors, 4)
	types := make([]string, len(cfg.Sensors))
	for i, s := range cfg.Sensors {
		types[i] = s.Type
	}
	assert.Equal(t, []string{TypeDS18B20, TypeURM14, TypeEC10, TypeTurbidity}, types)
	assert.Equal(t, byte(0x11), cfg.Sensors[1].Modbus.SlaveID)
	assert.Equal(t, float32(2.87), cfg.Sensors[3].Analog.R2)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyS0", cfg.Link.Port)
	assert.Len(t, cfg.Sensors, 4)
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
satellite:
  name: "BUOY_NORTH"
  version: "2.1"

link:
  port: "/dev/ttyAMA0"

poll:
  interval: 30s

sensors:
  - name: level
    type: a01nyub
    serial:
      port: /dev/ttyS2
  - name: backup_level
    type: jsn-sr04t
    pulse:
      trigger: GPIO5
      echo: GPIO6
  - name: water
    type: ds18b20
    onewire:
      bus: ""
      index: 1
`)

	cfg, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, "BUOY_NORTH", cfg.Satellite.Name)
	assert.Equal(t, "2.1", cfg.Satellite.Version)
	assert.Equal(t, "/dev/ttyAMA0", cfg.Link.Port)
	assert.Equal(t, 115200, cfg.Link.BaudRate) // default
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, float32(3.3), cfg.ADC.VRef) // default

	require.Len(t, cfg.Sensors, 3, "sensors replace the default set")
	assert.Equal(t, 9600, cfg.Sensors[0].Serial.BaudRate)
	assert.Equal(t, 150*time.Millisecond, cfg.Sensors[0].Serial.ResponseTime)
	assert.Equal(t, 10*time.Millisecond, cfg.Sensors[1].Pulse.Timeout)
	assert.Equal(t, 1, cfg.Sensors[2].OneWire.Index)
	assert.Equal(t, 11, cfg.Sensors[2].OneWire.Resolution)
}

func TestLoad_PartialYAML(t *testing.T) {
	name := writeTemp(t, `
bluetooth:
  mac: "00:14:03:05:0c:a1"
`)

	cfg, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, "00:14:03:05:0c:a1", cfg.Bluetooth.MAC)
	assert.Equal(t, time.Second, cfg.Bluetooth.Timeout) // default
	assert.Len(t, cfg.Sensors, 4)                       // default
}

func TestLoad_InvalidYAML(t *testing.T) {
	name := writeTemp(t, "invalid: yaml: content: [")

	cfg, err := Load(name)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown sensor type",
			yaml: `
sensors:
  - name: x
    type: lidar
`,
		},
		{
			name: "missing bus block",
			yaml: `
sensors:
  - name: distance
    type: urm14
`,
		},
		{
			name: "duplicate names",
			yaml: `
sensors:
  - name: t
    type: ds18b20
    onewire: {index: 0}
  - name: t
    type: ds18b20
    onewire: {index: 1}
`,
		},
		{
			name: "unknown turbidity curve",
			yaml: `
sensors:
  - name: turbidity
    type: turbidity
    analog: {channel: 2}
    calibration: {curve: c}
`,
		},
		{
			name: "divider without lower resistor",
			yaml: `
sensors:
  - name: turbidity
    type: turbidity
    analog: {channel: 2, r1: 1}
`,
		},
		{
			name: "bad mac",
			yaml: `
bluetooth:
  mac: not-a-mac
`,
		},
		{
			name: "bad resolution",
			yaml: `
adc:
  resolution: 32
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, tt.yaml))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestSensorEnsureDefaults(t *testing.T) {
	tests := []struct {
		name  string
		in    SensorConfig
		check func(t *testing.T, s SensorConfig)
	}{
		{
			name: "urm14",
			in:   SensorConfig{Type: TypeURM14, Modbus: &ModbusConfig{Port: "/dev/ttyS3"}},
			check: func(t *testing.T, s SensorConfig) {
				assert.Equal(t, 9600, s.Modbus.BaudRate)
				assert.Equal(t, byte(0x11), s.Modbus.SlaveID)
				assert.Equal(t, 100*time.Millisecond, s.Modbus.Timeout)
			},
		},
		{
			name: "ec10",
			in:   SensorConfig{Type: TypeEC10, Analog: &AnalogConfig{}},
			check: func(t *testing.T, s SensorConfig) {
				assert.Equal(t, float32(1.0), s.Calibration.KValue)
			},
		},
		{
			name: "turbidity",
			in:   SensorConfig{Type: TypeTurbidity, Analog: &AnalogConfig{}},
			check: func(t *testing.T, s SensorConfig) {
				assert.Equal(t, CurveA, s.Calibration.Curve)
			},
		},
		{
			name: "missing block left alone",
			in:   SensorConfig{Type: TypeA01NYUB},
			check: func(t *testing.T, s SensorConfig) {
				assert.Nil(t, s.Serial)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.in
			s.ensureDefaults()
			tt.check(t, s)
		})
	}
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Satellite.Name = "BUOY_SOUTH"
	cfg.Sensors[2].Calibration.KValue = 10
	cfg.Sensors[3].Calibration.Curve = CurveB

	name := writeTemp(t, "")
	require.NoError(t, cfg.Save(name))

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "BUOY_SOUTH", loaded.Satellite.Name)
	assert.Equal(t, float32(10), loaded.Sensors[2].Calibration.KValue)
	assert.Equal(t, CurveB, loaded.Sensors[3].Calibration.Curve)
	assert.Equal(t, cfg.Sensors[1].Modbus, loaded.Sensors[1].Modbus)
}
