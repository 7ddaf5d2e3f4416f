package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gosat/pkg/bus"
	"github.com/itohio/gosat/pkg/config"
	"github.com/itohio/gosat/pkg/escalate"
)

// recorder is an Escalator that halts by panicking, as escalate.Policy does
// when its exit function returns.
type recorder struct {
	messages []string
}

func (r *recorder) Escalate(message string) {
	r.messages = append(r.messages, message)
	panic(escalate.Halt{Message: message})
}

func newModbus(t *testing.T, slave *bus.SimSlave) (*bus.RS485, *bus.SimDirection) {
	t.Helper()
	line := &bus.SimDirection{}
	session, err := bus.NewSession(URM14SlaveID, URM14BaudRate, line)
	require.NoError(t, err)
	return bus.NewRS485(&bus.SimPort{Reply: slave.Reply}, session, 10*time.Millisecond), line
}

// fixture builds one connected and one disconnected instance of each module.
type fixture struct {
	name         string
	connected    Sensor
	disconnected Sensor
	message      string
}

func fixtures(t *testing.T) []fixture {
	t.Helper()

	adc := bus.NewSimADC()
	analog := bus.NewAnalogInput(adc, 3.3, 10)
	adc.Set(1, 310) // EC probe, ~1 V
	adc.Set(2, 0)   // unplugged
	adc.Set(3, 300) // turbidity, 1.30 V at the sensor
	adc.Set(5, 900) // turbidity, 3.91 V at the sensor

	framedOK := &bus.SimPort{Stream: bus.SimFrameStream(func() (uint16, bool) { return 1234, true })}
	framedNone := &bus.SimPort{}

	urmOK, _ := newModbus(t, bus.NewSimSlave(URM14SlaveID, map[uint16]uint16{URM14RegDistance: 12345}))
	offline := bus.NewSimSlave(URM14SlaveID, nil)
	offline.Offline = true
	urmNone, _ := newModbus(t, offline)

	return []fixture{
		{
			name:         "ds18b20",
			connected:    NewDS18B20("temp", bus.NewSimThermometer(21.5), 0, 11),
			disconnected: NewDS18B20("temp", bus.NewSimThermometer(), 0, 11),
			message:      "No DS18B20 connected...",
		},
		{
			name:         "a01nyub",
			connected:    NewA01NYUB("dist", "/dev/ttyS2", framedOK, time.Millisecond),
			disconnected: NewA01NYUB("dist", "/dev/ttyS2", framedNone, time.Millisecond),
			message:      "No A01NYUB distance sensor detected, check wiring...",
		},
		{
			name:         "jsn-sr04t",
			connected:    NewJSNSR04T("dist", "32/31", bus.NewSimPulse(5800*time.Microsecond), 0),
			disconnected: NewJSNSR04T("dist", "32/31", bus.NewSimPulse(0), 0),
			message:      "Distance sensor JSN SR04T not responding.",
		},
		{
			name:         "urm14",
			connected:    NewURM14("dist", urmOK, URM14DefaultControl),
			disconnected: NewURM14("dist", urmNone, URM14DefaultControl),
			message:      "Modbus : Config could not be written to UMR14 sensor, check wiring.",
		},
		{
			name:         "ec10",
			connected:    NewEC10("ec", analog, 1, 1.0),
			disconnected: NewEC10("ec", analog, 2, 1.0),
			message:      "No Gravity EC sensor detected...",
		},
		{
			name:         "turbidity curve A",
			connected:    NewTurbidity("turb", analog, 3, 1, 2.87, CurveA),
			disconnected: NewTurbidity("turb", analog, 2, 1, 2.87, CurveA),
			message:      "No Gravity turbidity sensor detected...",
		},
		{
			name:         "turbidity curve B",
			connected:    NewTurbidity("turb", analog, 5, 1, 2.87, CurveB),
			disconnected: NewTurbidity("turb", analog, 2, 1, 2.87, CurveB),
			message:      "No Gravity turbidity sensor detected...",
		},
	}
}

func TestSetup_ConnectedSucceeds(t *testing.T) {
	for _, f := range fixtures(t) {
		t.Run(f.name, func(t *testing.T) {
			esc := &recorder{}
			assert.NotPanics(t, func() { Boot(context.Background(), f.connected, esc) })
			assert.Empty(t, esc.messages)
		})
	}
}

func TestSetup_DisconnectedNeverReturns(t *testing.T) {
	for _, f := range fixtures(t) {
		t.Run(f.name, func(t *testing.T) {
			err := f.disconnected.Setup(context.Background())
			var fault *Fault
			require.True(t, errors.As(err, &fault))
			assert.Equal(t, SetupFault, fault.Kind)
			assert.Equal(t, f.message, fault.Message)

			esc := &recorder{}
			returned := false
			assert.PanicsWithValue(t, escalate.Halt{Message: f.message}, func() {
				Boot(context.Background(), f.disconnected, esc)
				returned = true
			})
			assert.False(t, returned)
			assert.Equal(t, []string{f.message}, esc.messages)
		})
	}
}

type nonHaltingEscalator struct{}

func (nonHaltingEscalator) Escalate(string) {}

func TestBoot_EscalatorMustNotReturn(t *testing.T) {
	s := NewDS18B20("temp", bus.NewSimThermometer(), 0, 11)
	assert.Panics(t, func() { Boot(context.Background(), s, nonHaltingEscalator{}) })
}

func TestRead_DisconnectedReportsNoValue(t *testing.T) {
	for _, f := range fixtures(t) {
		t.Run(f.name, func(t *testing.T) {
			r, ok := f.disconnected.Read(context.Background(), WithTemperature(20))
			assert.False(t, ok)
			assert.Equal(t, f.disconnected.Descriptor().NoValue, r.Value)
			assert.Equal(t, f.disconnected.Descriptor().Name, r.Sensor)
		})
	}
}

func TestRead_Idempotent(t *testing.T) {
	for _, f := range fixtures(t) {
		t.Run(f.name, func(t *testing.T) {
			for _, s := range []Sensor{f.connected, f.disconnected} {
				r1, ok1 := s.Read(context.Background(), WithTemperature(20))
				r2, ok2 := s.Read(context.Background(), WithTemperature(20))
				assert.Equal(t, r1, r2)
				assert.Equal(t, ok1, ok2)
			}
		})
	}
}

func TestWithTemperature(t *testing.T) {
	assert.True(t, WithTemperature(18).Valid)
	assert.False(t, WithTemperature(TempNoValue).Valid)
	assert.False(t, NoCompensation.Valid)
}

func TestFault_Error(t *testing.T) {
	cause := errors.New("timeout")
	f := &Fault{Kind: SetupFault, Sensor: "dist", Message: "not responding", Err: cause}
	assert.Equal(t, "dist setup fault: not responding: timeout", f.Error())
	assert.ErrorIs(t, f, cause)
}

func TestNewAll(t *testing.T) {
	cfg := config.Default()
	sim := bus.NewSimulated(cfg)

	sensors, err := NewAll(cfg.Sensors, sim)
	require.NoError(t, err)
	require.Len(t, sensors, len(cfg.Sensors))

	for i, s := range sensors {
		d := s.Descriptor()
		assert.Equal(t, cfg.Sensors[i].Name, d.Name)
		assert.Equal(t, cfg.Sensors[i].Manufacturer, d.Manufacturer)
		assert.Equal(t, cfg.Sensors[i].Reference, d.Reference)

		esc := &recorder{}
		assert.NotPanics(t, func() { Boot(context.Background(), s, esc) }, d.Name)

		_, ok := s.Read(context.Background(), WithTemperature(cfg.Mock.TemperatureC))
		assert.True(t, ok, d.Name)
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.SensorConfig{Name: "x", Type: "lidar"}, bus.NewSimulated(config.Default()))
	assert.Error(t, err)

	_, err = New(config.SensorConfig{Name: "x", Type: config.TypeEC10}, bus.NewSimulated(config.Default()))
	assert.Error(t, err)
}
