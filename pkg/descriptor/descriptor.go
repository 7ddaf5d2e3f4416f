// Package descriptor assembles the identity the satellite reports to its base
// station: device name and version, Bluetooth identity and the sensor manifest.
package descriptor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/itohio/gosat/pkg/bus"
	"github.com/itohio/gosat/pkg/config"
	"github.com/itohio/gosat/pkg/sensor"
)

// Sensor is one entry of the sensor manifest.
type Sensor struct {
	Name        string `json:"SENSOR_NAME"`
	Constructor string `json:"CONSTRUCTOR,omitempty"`
	Reference   string `json:"REF,omitempty"`
}

// Device is the descriptor sent in answer to getConfig.
type Device struct {
	Name       string   `json:"NAME"`
	Version    string   `json:"VERSION"`
	BTName     string   `json:"BT_NAME,omitempty"`
	MACAddress string   `json:"MAC_ADDRESS,omitempty"`
	UART       string   `json:"UART,omitempty"`
	Sensors    []Sensor `json:"SENSORS"`
}

// Bluetooth is the identity reported by the Bluetooth module.
type Bluetooth struct {
	Name string
	MAC  string
	UART string
}

// Build assembles the device descriptor.
func Build(sat config.SatelliteConfig, bt Bluetooth, sensors []sensor.Descriptor) Device {
	d := Device{
		Name:       sat.Name,
		Version:    sat.Version,
		BTName:     bt.Name,
		MACAddress: bt.MAC,
		UART:       bt.UART,
		Sensors:    make([]Sensor, 0, len(sensors)),
	}
	for _, s := range sensors {
		name := s.Model
		if name == "" {
			name = s.Name
		}
		d.Sensors = append(d.Sensors, Sensor{
			Name:        name,
			Constructor: s.Manufacturer,
			Reference:   s.Reference,
		})
	}
	return d
}

// Descriptors returns the descriptors of sensors in order.
func Descriptors(sensors []sensor.Sensor) []sensor.Descriptor {
	out := make([]sensor.Descriptor, len(sensors))
	for i, s := range sensors {
		out[i] = s.Descriptor()
	}
	return out
}

// JSON serializes the descriptor on a single line.
func (d Device) JSON() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}
	return data, nil
}

// Commander sends AT commands. *bus.AT implements it.
type Commander interface {
	SendCommand(ctx context.Context, cmd string, timeout time.Duration) (string, error)
}

var _ Commander = (*bus.AT)(nil)

// QueryBluetooth asks the module for its name, address and UART settings.
// Fields that cannot be read stay empty; the first error is returned alongside
// whatever was read.
func QueryBluetooth(ctx context.Context, at Commander, timeout time.Duration) (Bluetooth, error) {
	var bt Bluetooth
	var firstErr error

	for _, q := range []struct {
		cmd string
		dst *string
	}{
		{"AT+NAME?", &bt.Name},
		{"AT+ADDR?", &bt.MAC},
		{"AT+UART?", &bt.UART},
	} {
		v, err := at.SendCommand(ctx, q.cmd, timeout)
		if err != nil {
			log.Printf("Bluetooth query %s failed: %v", q.cmd, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		*q.dst = v
	}

	return bt, firstErr
}
