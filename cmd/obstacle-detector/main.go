// Command obstacle-detector measures distance with an HC-SR04, lights a
// red or blue LED depending on whether something is within 80cm, and prints
// a status line every cycle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.bug.st/serial"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/asjoyner/obstacle-detector/detector"
	"github.com/asjoyner/obstacle-detector/internal/config"
	"github.com/asjoyner/obstacle-detector/internal/monitoring"
	"github.com/asjoyner/obstacle-detector/rangesensor"
)

var (
	configPath = flag.String("config", "", "Path to a JSON config file; defaults are used when empty")
	serialPort = flag.String("serial", "", "Serial port for status lines, overrides serial_port (default stdout)")
	baudRate   = flag.Int("baud", 0, "Baud rate for -serial, overrides baud_rate")
	debug      = flag.Bool("debug", false, "Log measurement failures")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if !*debug {
		monitoring.SetLogger(nil)
	}

	if _, err := host.Init(); err != nil {
		log.Fatalf("failed to initialize periph host drivers: %v", err)
	}
	rig, err := newRig(cfg)
	if err != nil {
		log.Fatalf("failed to set up sensor rig: %v", err)
	}

	out, err := openOutput(cfg)
	if err != nil {
		log.Fatalf("failed to open output: %v", err)
	}
	defer out.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := detector.New(rig, detector.NewReporter(out), detector.Options{Interval: cfg.GetInterval()})
	if err := run(ctx, d); err != nil {
		log.Printf("detector stopped: %v", err)
	}
}

// run returns nil when the detector stopped because ctx was cancelled.
func run(ctx context.Context, d *detector.Detector) error {
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	if *serialPort != "" {
		cfg.SerialPort = *serialPort
	}
	if *baudRate > 0 {
		cfg.BaudRate = *baudRate
	}
	return cfg, cfg.Validate()
}

func newRig(cfg *config.Config) (*detector.SensorRig, error) {
	sensor, err := rangesensor.New(cfg.EchoPin, cfg.TriggerPin)
	if err != nil {
		return nil, err
	}
	sensor.EchoRiseTimeout = cfg.GetEchoRiseTimeout()
	sensor.EchoFallTimeout = cfg.GetEchoFallTimeout()
	if sensor.EchoFallTimeout == 0 {
		log.Printf("echo_fall_timeout is 0: a stuck echo line will hang the detector")
	}

	rig := &detector.SensorRig{Sensor: sensor, ActiveLow: cfg.ActiveLowIndicators}
	for _, led := range []struct {
		name string
		pin  *gpio.PinOut
	}{
		{cfg.RedPin, &rig.Red},
		{cfg.BluePin, &rig.Blue},
		{cfg.GreenPin, &rig.Green},
	} {
		p := gpioreg.ByName(led.name)
		if p == nil {
			return nil, fmt.Errorf("no GPIO indicator pin named: %s", led.name)
		}
		*led.pin = p
	}
	return rig, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openOutput(cfg *config.Config) (io.WriteCloser, error) {
	if cfg.SerialPort == "" {
		return nopCloser{os.Stdout}, nil
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.SerialPort, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.SerialPort, err)
	}
	return port, nil
}
