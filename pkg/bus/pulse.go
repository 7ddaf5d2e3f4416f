package bus

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

const (
	// TriggerWidth is how long the trigger line is held high.
	TriggerWidth = 20 * time.Microsecond
	// DefaultEchoTimeout bounds the echo pulse measurement.
	DefaultEchoTimeout = 10 * time.Millisecond
)

// PulseTimer fires a trigger pulse and measures the width of the high echo pulse.
// A timeout reports a zero width.
type PulseTimer interface {
	Ping(ctx context.Context, timeout time.Duration) (time.Duration, error)
}

// GPIOPulse is a PulseTimer on two periph GPIO pins.
type GPIOPulse struct {
	trigger gpio.PinIO
	echo    gpio.PinIO
}

// NewGPIOPulse looks up the trigger and echo pins by name and configures them.
// host.Init must have been called.
func NewGPIOPulse(trigger, echo string) (*GPIOPulse, error) {
	trig := gpioreg.ByName(trigger)
	if trig == nil {
		return nil, fmt.Errorf("unknown trigger pin %q", trigger)
	}
	ech := gpioreg.ByName(echo)
	if ech == nil {
		return nil, fmt.Errorf("unknown echo pin %q", echo)
	}
	if err := trig.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to configure trigger pin %s: %w", trigger, err)
	}
	if err := ech.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("failed to configure echo pin %s: %w", echo, err)
	}
	return &GPIOPulse{trigger: trig, echo: ech}, nil
}

// Ping emits the trigger pulse and returns the echo high time, or 0 if no
// complete pulse was seen within timeout.
func (p *GPIOPulse) Ping(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := p.trigger.Out(gpio.High); err != nil {
		return 0, fmt.Errorf("failed to raise trigger: %w", err)
	}
	busyWait(TriggerWidth)
	if err := p.trigger.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("failed to lower trigger: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for p.echo.Read() != gpio.High {
		remaining := time.Until(deadline)
		if remaining <= 0 || !p.echo.WaitForEdge(remaining) {
			return 0, nil
		}
	}
	start := time.Now()
	for p.echo.Read() == gpio.High {
		remaining := time.Until(deadline)
		if remaining <= 0 || !p.echo.WaitForEdge(remaining) {
			return 0, nil
		}
	}
	return time.Since(start), nil
}

// busyWait spins for short delays that time.Sleep cannot honour.
func busyWait(d time.Duration) {
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}
