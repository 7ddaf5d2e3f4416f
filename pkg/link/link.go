// Package link talks to the base station over the comm serial port: it answers
// orders and reports readings as JSON lines.
package link

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/itohio/gosat/pkg/descriptor"
	"github.com/itohio/gosat/pkg/poll"
)

// DefaultBaudRate is the comm link speed.
const DefaultBaudRate = 115200

// Orders accepted from the base station.
const (
	OrderGetConfig = "getConfig"
	OrderRestart   = "restart"
)

// ParseFailed is answered to lines that are not a JSON object.
const ParseFailed = "parseObject() failed"

type order struct {
	Order string `json:"order"`
}

type report struct {
	Sensor    string  `json:"sensor"`
	Quantity  string  `json:"quantity"`
	Value     float32 `json:"value"`
	Unit      string  `json:"unit"`
	Connected bool    `json:"connected"`
}

type ack struct {
	Ack string `json:"ack"`
}

// Link serves one comm port.
type Link struct {
	rw       io.ReadWriter
	describe func() descriptor.Device
	restart  func()

	mu sync.Mutex
}

// New creates a link. describe produces the getConfig answer; restart is called
// after a restart order was acknowledged.
func New(rw io.ReadWriter, describe func() descriptor.Device, restart func()) *Link {
	return &Link{rw: rw, describe: describe, restart: restart}
}

// Serve reads orders line by line until ctx is done or the port fails.
func (l *Link) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(l.rw)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("error reading from comm port: %w", err)
			}
			return io.EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := l.Handle(line); err != nil {
			log.Printf("Failed to handle order '%s': %v", line, err)
		}
	}
}

// Handle executes one order line.
func (l *Link) Handle(line string) error {
	var o order
	if err := json.Unmarshal([]byte(line), &o); err != nil {
		return l.writeLine([]byte(ParseFailed))
	}

	switch o.Order {
	case OrderGetConfig:
		log.Printf("getConfig received")
		data, err := l.describe().JSON()
		if err != nil {
			return err
		}
		return l.writeLine(data)

	case OrderRestart:
		log.Printf("Restart in progress")
		if err := l.writeJSON(ack{Ack: OrderRestart}); err != nil {
			return err
		}
		if l.restart != nil {
			l.restart()
		}
		return nil

	default:
		return fmt.Errorf("unknown order %q", o.Order)
	}
}

// Report writes one JSON line per sample of res.
func (l *Link) Report(res poll.Result) error {
	for _, s := range res.Samples {
		err := l.writeJSON(report{
			Sensor:    s.Sensor,
			Quantity:  s.Quantity.String(),
			Value:     s.Value,
			Unit:      s.Quantity.Unit(),
			Connected: s.Connected,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Link) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	return l.writeLine(data)
}

func (l *Link) writeLine(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.rw.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to comm port: %w", err)
	}
	return nil
}
