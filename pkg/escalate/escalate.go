// Package escalate halts the satellite when a sensor is missing at boot.
package escalate

import (
	"fmt"
	"log"
	"os"
)

// ExitCode is the process status used when a sensor fails setup.
const ExitCode = 3

// Halt is the panic value raised if the exit function returns.
type Halt struct {
	Message string
}

func (h Halt) String() string {
	return fmt.Sprintf("halted: %s", h.Message)
}

// Logger receives diagnostic lines. datalog.Logger satisfies it.
type Logger interface {
	Log(line string) error
}

// Policy reports a diagnostic and stops the device until an operator reboots it.
type Policy struct {
	// Log receives the diagnostic line; nil only uses the standard logger.
	Log Logger
	// Exit terminates the process; nil means os.Exit.
	Exit func(code int)
}

// New returns a policy that logs to l and exits the process.
func New(l Logger) *Policy {
	return &Policy{Log: l, Exit: os.Exit}
}

// Escalate logs message and halts. It never returns: if Exit returns, it panics
// with a Halt value.
func (p *Policy) Escalate(message string) {
	log.Printf("FATAL: %s", message)
	if p.Log != nil {
		if err := p.Log.Log("FATAL: " + message); err != nil {
			log.Printf("Failed to write diagnostic to datalog: %v", err)
		}
	}

	exit := p.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(ExitCode)

	panic(Halt{Message: message})
}
