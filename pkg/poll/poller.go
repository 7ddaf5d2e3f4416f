// Package poll reads every sensor once per tick in a fixed order.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/itohio/gosat/pkg/datalog"
	"github.com/itohio/gosat/pkg/health"
	"github.com/itohio/gosat/pkg/sensor"
)

// Sample is one sensor's reading in a poll cycle.
type Sample struct {
	sensor.Reading
	Connected bool
}

// Result is a snapshot produced by one poll cycle.
type Result struct {
	At      time.Time
	Samples []Sample
}

// Poller reads sensors sequentially. Sensor reads never overlap.
type Poller struct {
	interval time.Duration
	sensors  []sensor.Sensor
	health   *health.Tracker
	datalog  datalog.Logger

	values *prometheus.GaugeVec
}

// New creates a poller over sensors, in the order given. A nil reg skips
// metric registration.
func New(interval time.Duration, sensors []sensor.Sensor, tracker *health.Tracker, logger datalog.Logger, reg prometheus.Registerer) (*Poller, error) {
	if interval <= 0 {
		return nil, errors.New("poll: interval must be > 0")
	}
	if len(sensors) == 0 {
		return nil, errors.New("poll: at least one sensor required")
	}
	if tracker == nil {
		return nil, errors.New("poll: health tracker required")
	}
	if logger == nil {
		logger = datalog.Discard{}
	}

	p := &Poller{
		interval: interval,
		sensors:  sensors,
		health:   tracker,
		datalog:  logger,
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gosat_sensor_value",
				Help: "Latest reading of a sensor in its native unit.",
			},
			[]string{"sensor", "quantity", "unit"},
		),
	}
	if reg != nil {
		reg.MustRegister(p.values)
	}
	return p, nil
}

// Boot runs every sensor's setup in order. A missing sensor escalates and Boot
// does not return.
func (p *Poller) Boot(ctx context.Context, esc sensor.Escalator) {
	for _, s := range p.sensors {
		d := s.Descriptor()
		log.Printf("Setting up %s (%s on %s %s)", d.Name, d.Model, d.Bus, d.Address)
		sensor.Boot(ctx, s, esc)
		p.health.Update(d.Name, true)
		p.logLine(fmt.Sprintf("setup,%s,%s,ok", d.Name, d.Model))
	}
}

// PollOnce performs exactly one poll cycle. A temperature read earlier in the
// cycle compensates the sensors read after it.
func (p *Poller) PollOnce(ctx context.Context) Result {
	res := Result{
		At:      time.Now(),
		Samples: make([]Sample, 0, len(p.sensors)),
	}

	comp := sensor.NoCompensation
	for _, s := range p.sensors {
		r, connected := s.Read(ctx, comp)
		p.health.Update(r.Sensor, connected)

		if connected && r.Quantity == sensor.Temperature && !comp.Valid {
			comp = sensor.WithTemperature(r.Value)
		}

		if connected {
			p.values.WithLabelValues(r.Sensor, r.Quantity.String(), r.Quantity.Unit()).Set(float64(r.Value))
		}
		p.logLine(fmt.Sprintf("reading,%s,%.2f,%s,%d", r.Sensor, r.Value, r.Quantity.Unit(), boolToInt(connected)))

		res.Samples = append(res.Samples, Sample{Reading: r, Connected: connected})
	}

	return res
}

// Run polls every interval and emits each Result on out until ctx is done.
func (p *Poller) Run(ctx context.Context, out chan<- Result) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := p.PollOnce(ctx)
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Sensors returns the polled sensors in order.
func (p *Poller) Sensors() []sensor.Sensor {
	return p.sensors
}

func (p *Poller) logLine(line string) {
	if err := p.datalog.Log(line); err != nil {
		log.Printf("Failed to write datalog: %v", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
