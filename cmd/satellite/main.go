package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itohio/gosat/pkg/bus"
	"github.com/itohio/gosat/pkg/config"
	"github.com/itohio/gosat/pkg/datalog"
	"github.com/itohio/gosat/pkg/descriptor"
	"github.com/itohio/gosat/pkg/escalate"
	"github.com/itohio/gosat/pkg/health"
	"github.com/itohio/gosat/pkg/link"
	"github.com/itohio/gosat/pkg/poll"
	"github.com/itohio/gosat/pkg/sensor"
)

// exitRestart asks the supervisor to start the satellite again.
const exitRestart = 75

func main() {
	var (
		portFlag    = flag.String("p", "", "Comm link serial port override (e.g., /dev/ttyS0)")
		configFlag  = flag.String("config", "satellite.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Use simulated buses instead of hardware; the link runs on stdin/stdout")
		metricsFlag = flag.String("metrics-addr", "", "Prometheus listen address override")
		onceFlag    = flag.Bool("once", false, "Poll once, report and exit")
		listFlag    = flag.Bool("list-ports", false, "List serial ports and exit")
		writeFlag   = flag.Bool("write-config", false, "Write the effective configuration and exit")
	)
	flag.Parse()

	if *listFlag {
		listPorts()
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Link.Port = *portFlag
	}
	if *metricsFlag != "" {
		cfg.Metrics.Addr = *metricsFlag
	}

	if *writeFlag {
		if err := cfg.Save(*configFlag); err != nil {
			log.Fatalf("Failed to save configuration: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restart, err := run(ctx, cfg, *mockFlag, *onceFlag)
	if err != nil {
		log.Fatalf("Satellite stopped: %v", err)
	}
	if restart {
		log.Printf("Restarting")
		os.Exit(exitRestart)
	}
}

func run(parent context.Context, cfg *config.Config, mock, once bool) (bool, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logger, closeLog, err := openDatalog(cfg.Datalog)
	if err != nil {
		return false, err
	}
	defer closeLog()

	buses, err := openBuses(cfg, mock)
	if err != nil {
		return false, err
	}
	defer buses.Close()

	sensors, err := sensor.NewAll(cfg.Sensors, buses)
	if err != nil {
		return false, fmt.Errorf("failed to build sensors: %w", err)
	}

	names := make([]string, len(sensors))
	for i, s := range sensors {
		names[i] = s.Descriptor().Name
	}
	tracker := health.NewTracker(prometheus.DefaultRegisterer, names...)

	poller, err := poll.New(cfg.Poll.Interval, sensors, tracker, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return false, err
	}

	poller.Boot(ctx, escalate.New(logger))
	log.Printf("%d sensors ready", len(sensors))

	bt := queryBluetooth(ctx, cfg, mock)
	device := descriptor.Build(cfg.Satellite, bt, descriptor.Descriptors(sensors))

	comm, closeComm, err := openLink(cfg.Link, mock)
	if err != nil {
		return false, err
	}
	defer closeComm()

	var restart atomic.Bool
	l := link.New(comm, func() descriptor.Device { return device }, func() {
		restart.Store(true)
		cancel()
	})

	if once {
		return false, l.Report(poller.PollOnce(ctx))
	}

	go func() {
		if err := l.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Comm link stopped: %v", err)
		}
	}()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr)
	}

	results := make(chan poll.Result)
	go poller.Run(ctx, results)

	for {
		select {
		case <-ctx.Done():
			return restart.Load(), nil
		case res := <-results:
			if err := l.Report(res); err != nil {
				log.Printf("Failed to report readings: %v", err)
			}
			if down := tracker.Disconnected(); len(down) > 0 {
				log.Printf("Disconnected sensors: %v", down)
			}
		}
	}
}

// closableBuses is a sensor.Buses that owns open ports.
type closableBuses interface {
	sensor.Buses
	Close() error
}

func openBuses(cfg *config.Config, mock bool) (closableBuses, error) {
	if mock {
		log.Printf("Using simulated buses")
		return bus.NewSimulated(cfg), nil
	}
	return bus.NewHardware(cfg.ADC)
}

func openDatalog(cfg config.DatalogConfig) (datalog.Logger, func(), error) {
	if cfg.Path == "" {
		return datalog.Discard{}, func() {}, nil
	}
	f, err := datalog.Open(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing datalog: %v", err)
		}
	}, nil
}

func openLink(cfg config.LinkConfig, mock bool) (io.ReadWriter, func(), error) {
	if mock || cfg.Port == "" {
		return stdio{}, func() {}, nil
	}
	port, err := bus.OpenSerial(cfg.Port, cfg.BaudRate)
	if err != nil {
		return nil, nil, err
	}
	return port, func() {
		if err := port.Close(); err != nil {
			log.Printf("Error closing comm port: %v", err)
		}
	}, nil
}

// queryBluetooth reads the Bluetooth module identity. Failures are logged and
// leave the corresponding descriptor fields empty.
func queryBluetooth(ctx context.Context, cfg *config.Config, mock bool) descriptor.Bluetooth {
	bt := descriptor.Bluetooth{}
	if !mock && cfg.Bluetooth.Port != "" {
		port, err := bus.OpenSerial(cfg.Bluetooth.Port, cfg.Bluetooth.BaudRate)
		if err != nil {
			log.Printf("Bluetooth module unavailable: %v", err)
		} else {
			bt, _ = descriptor.QueryBluetooth(ctx, bus.NewAT(port), cfg.Bluetooth.Timeout)
			port.Close()
		}
	}
	if cfg.Bluetooth.MAC != "" {
		bt.MAC = cfg.Bluetooth.MAC
	}
	return bt
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server stopped: %v", err)
	}
}

func listPorts() {
	ports, err := bus.Ports()
	if err != nil {
		log.Fatalf("Failed to list ports: %v", err)
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
}

// stdio is the comm link in mock mode.
type stdio struct{}

func (stdio) Read(b []byte) (int, error)  { return os.Stdin.Read(b) }
func (stdio) Write(b []byte) (int, error) { return os.Stdout.Write(b) }
