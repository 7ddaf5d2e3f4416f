package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor types understood by the runtime.
const (
	TypeA01NYUB   = "a01nyub"
	TypeJSNSR04T  = "jsn-sr04t"
	TypeURM14     = "urm14"
	TypeDS18B20   = "ds18b20"
	TypeEC10      = "ec10"
	TypeTurbidity = "turbidity"
)

// Turbidity calibration curves.
const (
	CurveA = "a"
	CurveB = "b"
)

// DirectionRTS selects the serial RTS line as RS-485 driver enable instead of a GPIO.
const DirectionRTS = "rts"

// Config represents the satellite configuration.
type Config struct {
	Satellite SatelliteConfig `yaml:"satellite"`
	Link      LinkConfig      `yaml:"link"`
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	ADC       ADCConfig       `yaml:"adc"`
	Poll      PollConfig      `yaml:"poll"`
	Datalog   DatalogConfig   `yaml:"datalog"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Sensors   []SensorConfig  `yaml:"sensors"`
	Mock      MockConfig      `yaml:"mock"`
}

// SatelliteConfig identifies the device.
type SatelliteConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// LinkConfig is the serial link to the base station.
type LinkConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// BluetoothConfig is the AT configuration port of the Bluetooth module.
type BluetoothConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"`
	MAC      string        `yaml:"mac"` // overrides the address reported by the module
}

// ADCConfig describes the analog front end.
type ADCConfig struct {
	Device     string  `yaml:"device"` // IIO device directory
	VRef       float32 `yaml:"vref"`
	Resolution int     `yaml:"resolution"` // bits
}

// PollConfig contains the acquisition cadence.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// DatalogConfig points at the removable storage log file. Empty path disables logging.
type DatalogConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig contains the Prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// SensorConfig describes one physical sensor and where it is wired.
type SensorConfig struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Manufacturer string `yaml:"manufacturer,omitempty"`
	Reference    string `yaml:"reference,omitempty"`

	Analog  *AnalogConfig  `yaml:"analog,omitempty"`
	OneWire *OneWireConfig `yaml:"onewire,omitempty"`
	Serial  *SerialConfig  `yaml:"serial,omitempty"`
	Pulse   *PulseConfig   `yaml:"pulse,omitempty"`
	Modbus  *ModbusConfig  `yaml:"modbus,omitempty"`

	Calibration CalibrationConfig `yaml:"calibration,omitempty"`
}

// AnalogConfig is an ADC channel with an optional voltage divider in front of it.
type AnalogConfig struct {
	Channel int     `yaml:"channel"`
	R1      float32 `yaml:"r1,omitempty"` // kOhm, 0 = no divider
	R2      float32 `yaml:"r2,omitempty"` // kOhm
}

// OneWireConfig locates a Dallas thermometer.
type OneWireConfig struct {
	Bus        string `yaml:"bus"`
	Index      int    `yaml:"index"`
	Resolution int    `yaml:"resolution"`
}

// SerialConfig is a plain UART.
type SerialConfig struct {
	Port         string        `yaml:"port"`
	BaudRate     int           `yaml:"baud_rate"`
	ResponseTime time.Duration `yaml:"response_time"`
}

// PulseConfig holds trigger/echo GPIO names.
type PulseConfig struct {
	Trigger string        `yaml:"trigger"`
	Echo    string        `yaml:"echo"`
	Timeout time.Duration `yaml:"timeout"`
}

// ModbusConfig is an RS-485 Modbus RTU slave.
type ModbusConfig struct {
	Port      string        `yaml:"port"`
	BaudRate  int           `yaml:"baud_rate"`
	SlaveID   byte          `yaml:"slave_id"`
	Direction string        `yaml:"direction"` // GPIO name driving DE/RE, or "rts"
	Control   uint16        `yaml:"control"`   // URM14 control register word
	Timeout   time.Duration `yaml:"timeout"`
}

// CalibrationConfig holds per-sensor conversion constants.
type CalibrationConfig struct {
	KValue float32 `yaml:"k_value,omitempty"` // EC10 cell constant
	Curve  string  `yaml:"curve,omitempty"`   // turbidity curve
}

// MockConfig drives the simulated buses used with -mock.
type MockConfig struct {
	TemperatureC  float32 `yaml:"temperature_c"`
	DistanceMM    uint16  `yaml:"distance_mm"`
	ConductivityV float32 `yaml:"conductivity_v"` // ADC input voltage
	TurbidityV    float32 `yaml:"turbidity_v"`    // ADC input voltage, after divider
}

// Default returns the configuration of a buoy carrying the standard sensor set.
func Default() *Config {
	return &Config{
		Satellite: SatelliteConfig{
			Name:    "SATELLITE",
			Version: "1.0",
		},
		Link: LinkConfig{
			Port:     "/dev/ttyS0",
			BaudRate: 115200,
		},
		Bluetooth: BluetoothConfig{
			Port:     "/dev/ttyS1",
			BaudRate: 38400,
			Timeout:  time.Second,
		},
		ADC: ADCConfig{
			Device:     "/sys/bus/iio/devices/iio:device0",
			VRef:       3.3,
			Resolution: 10,
		},
		Poll: PollConfig{
			Interval: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9101",
		},
		Sensors: DefaultSensors(),
		Mock: MockConfig{
			TemperatureC:  18.5,
			DistanceMM:    1234,
			ConductivityV: 1.0,
			TurbidityV:    1.05,
		},
	}
}

// DefaultSensors returns the sensor set and wiring of the reference buoy.
func DefaultSensors() []SensorConfig {
	return []SensorConfig{
		{
			Name:         "temperature",
			Type:         TypeDS18B20,
			Manufacturer: "Maxim Integrated",
			Reference:    "https://www.analog.com/en/products/ds18b20.html",
			OneWire:      &OneWireConfig{Bus: "", Index: 0, Resolution: 11},
		},
		{
			Name:         "distance",
			Type:         TypeURM14,
			Manufacturer: "DFRobot",
			Reference:    "https://wiki.dfrobot.com/URM14_RS485_Ultrasonic_Sensor_SKU_SEN0358",
			Modbus: &ModbusConfig{
				Port:      "/dev/ttyS3",
				BaudRate:  9600,
				SlaveID:   0x11,
				Direction: "30",
				Control:   0x03,
				Timeout:   100 * time.Millisecond,
			},
		},
		{
			Name:         "conductivity",
			Type:         TypeEC10,
			Manufacturer: "DFRobot",
			Reference:    "https://wiki.dfrobot.com/Gravity__Analog_Electrical_Conductivity_Sensor___Meter_V2__K%3D1__SKU_DFR0300",
			Analog:       &AnalogConfig{Channel: 13},
			Calibration:  CalibrationConfig{KValue: 1.0},
		},
		{
			Name:         "turbidity",
			Type:         TypeTurbidity,
			Manufacturer: "DFRobot",
			Reference:    "https://wiki.dfrobot.com/Turbidity_sensor_SKU__SEN0189",
			Analog:       &AnalogConfig{Channel: 33, R1: 1, R2: 2.87},
			Calibration:  CalibrationConfig{Curve: CurveA},
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// A file listing sensors replaces the default set instead of merging into it.
	cfg.Sensors = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills in zero fields, including the per-bus blocks of each sensor.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Satellite.Name == "" {
		c.Satellite.Name = def.Satellite.Name
	}
	if c.Satellite.Version == "" {
		c.Satellite.Version = def.Satellite.Version
	}

	if c.Link.BaudRate == 0 {
		c.Link.BaudRate = def.Link.BaudRate
	}
	if c.Bluetooth.BaudRate == 0 {
		c.Bluetooth.BaudRate = def.Bluetooth.BaudRate
	}
	if c.Bluetooth.Timeout == 0 {
		c.Bluetooth.Timeout = def.Bluetooth.Timeout
	}

	if c.ADC.Device == "" {
		c.ADC.Device = def.ADC.Device
	}
	if c.ADC.VRef == 0 {
		c.ADC.VRef = def.ADC.VRef
	}
	if c.ADC.Resolution == 0 {
		c.ADC.Resolution = def.ADC.Resolution
	}

	if c.Poll.Interval == 0 {
		c.Poll.Interval = def.Poll.Interval
	}

	if len(c.Sensors) == 0 {
		c.Sensors = def.Sensors
	}
	for i := range c.Sensors {
		c.Sensors[i].ensureDefaults()
	}
}

func (s *SensorConfig) ensureDefaults() {
	switch s.Type {
	case TypeA01NYUB:
		if s.Serial != nil {
			if s.Serial.BaudRate == 0 {
				s.Serial.BaudRate = 9600
			}
			if s.Serial.ResponseTime == 0 {
				s.Serial.ResponseTime = 150 * time.Millisecond
			}
		}
	case TypeJSNSR04T:
		if s.Pulse != nil && s.Pulse.Timeout == 0 {
			s.Pulse.Timeout = 10 * time.Millisecond
		}
	case TypeURM14:
		if s.Modbus != nil {
			if s.Modbus.BaudRate == 0 {
				s.Modbus.BaudRate = 9600
			}
			if s.Modbus.SlaveID == 0 {
				s.Modbus.SlaveID = 0x11
			}
			if s.Modbus.Timeout == 0 {
				s.Modbus.Timeout = 100 * time.Millisecond
			}
		}
	case TypeDS18B20:
		if s.OneWire != nil && s.OneWire.Resolution == 0 {
			s.OneWire.Resolution = 11
		}
	case TypeEC10:
		if s.Calibration.KValue == 0 {
			s.Calibration.KValue = 1.0
		}
	case TypeTurbidity:
		if s.Calibration.Curve == "" {
			s.Calibration.Curve = CurveA
		}
	}
}
