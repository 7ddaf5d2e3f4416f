// Package health keeps the connectivity of every sensor as of its latest read.
package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// State is the connectivity of one sensor.
type State struct {
	Sensor    string
	Connected bool
}

// Tracker holds one connectivity flag per sensor. Each Update overwrites the
// previous value; there is no debouncing.
type Tracker struct {
	mu    sync.RWMutex
	order []string
	state map[string]bool

	connected *prometheus.GaugeVec
}

// NewTracker creates a tracker for the named sensors, all initially disconnected,
// and registers its gauge with reg. A nil reg skips registration.
func NewTracker(reg prometheus.Registerer, sensors ...string) *Tracker {
	t := &Tracker{
		state: make(map[string]bool, len(sensors)),
		connected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gosat_sensor_connected",
				Help: "Whether the latest read of a sensor succeeded (1) or not (0).",
			},
			[]string{"sensor"},
		),
	}
	if reg != nil {
		reg.MustRegister(t.connected)
	}

	for _, name := range sensors {
		t.add(name)
	}
	return t
}

func (t *Tracker) add(name string) {
	if _, ok := t.state[name]; ok {
		return
	}
	t.order = append(t.order, name)
	t.state[name] = false
	t.connected.WithLabelValues(name).Set(0)
}

// Update records the outcome of the latest read of sensor.
func (t *Tracker) Update(sensor string, connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.add(sensor)
	t.state[sensor] = connected

	v := 0.0
	if connected {
		v = 1
	}
	t.connected.WithLabelValues(sensor).Set(v)
}

// Connected returns the latest state of sensor and whether it is tracked.
func (t *Tracker) Connected(sensor string) (connected, known bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	connected, known = t.state[sensor]
	return connected, known
}

// Snapshot returns every sensor's state in registration order.
func (t *Tracker) Snapshot() []State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]State, len(t.order))
	for i, name := range t.order {
		out[i] = State{Sensor: name, Connected: t.state[name]}
	}
	return out
}

// Disconnected returns the sensors whose latest read failed.
func (t *Tracker) Disconnected() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for _, name := range t.order {
		if !t.state[name] {
			out = append(out, name)
		}
	}
	return out
}
