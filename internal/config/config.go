// Package config loads the wiring and timing of the obstacle detector.
// Distance thresholds are fixed in package detector and are not part of the
// configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/asjoyner/obstacle-detector/detector"
	"github.com/asjoyner/obstacle-detector/rangesensor"
)

// Config describes which pins the rig uses and how it is timed. Durations
// are strings such as "100ms".
type Config struct {
	TriggerPin string `json:"trigger_pin"`
	EchoPin    string `json:"echo_pin"`
	RedPin     string `json:"red_pin"`
	BluePin    string `json:"blue_pin"`
	GreenPin   string `json:"green_pin"`

	// ActiveLowIndicators is set when the LEDs light with their pin low.
	ActiveLowIndicators bool `json:"active_low_indicators"`

	Interval        string `json:"interval"`
	EchoRiseTimeout string `json:"echo_rise_timeout"`
	// EchoFallTimeout of "0s" waits forever for the echo to end.
	EchoFallTimeout string `json:"echo_fall_timeout"`

	// SerialPort, when set, receives the status lines instead of stdout.
	SerialPort string `json:"serial_port,omitempty"`
	BaudRate   int    `json:"baud_rate"`
}

// Default returns the configuration for an HC-SR04 on a Raspberry Pi, with
// BCM pin numbers.
func Default() *Config {
	return &Config{
		TriggerPin:          "GPIO23",
		EchoPin:             "GPIO24",
		RedPin:              "GPIO17",
		BluePin:             "GPIO27",
		GreenPin:            "GPIO22",
		ActiveLowIndicators: true,
		Interval:            detector.DefaultInterval.String(),
		EchoRiseTimeout:     rangesensor.DefaultEchoRiseTimeout.String(),
		EchoFallTimeout:     rangesensor.DefaultEchoFallTimeout.String(),
		BaudRate:            115200,
	}
}

// Load reads a JSON config file. Fields omitted from the file keep their
// Default values.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every pin is named and every duration parses.
func (c *Config) Validate() error {
	var errs []error
	for name, pin := range map[string]string{
		"trigger_pin": c.TriggerPin,
		"echo_pin":    c.EchoPin,
		"red_pin":     c.RedPin,
		"blue_pin":    c.BluePin,
		"green_pin":   c.GreenPin,
	} {
		if pin == "" {
			errs = append(errs, fmt.Errorf("%s must be set", name))
		}
	}
	if d, err := time.ParseDuration(c.Interval); err != nil {
		errs = append(errs, fmt.Errorf("interval: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", d))
	}
	if d, err := time.ParseDuration(c.EchoRiseTimeout); err != nil {
		errs = append(errs, fmt.Errorf("echo_rise_timeout: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("echo_rise_timeout must be positive, got %s", d))
	}
	if d, err := time.ParseDuration(c.EchoFallTimeout); err != nil {
		errs = append(errs, fmt.Errorf("echo_fall_timeout: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("echo_fall_timeout must not be negative, got %s", d))
	}
	if c.SerialPort != "" && c.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate))
	}
	return errors.Join(errs...)
}

// GetInterval returns the idle time between cycles.
func (c *Config) GetInterval() time.Duration {
	return parseOr(c.Interval, detector.DefaultInterval)
}

// GetEchoRiseTimeout returns the bound on waiting for the echo to start.
func (c *Config) GetEchoRiseTimeout() time.Duration {
	return parseOr(c.EchoRiseTimeout, rangesensor.DefaultEchoRiseTimeout)
}

// GetEchoFallTimeout returns the bound on the echo width. Zero means
// unbounded.
func (c *Config) GetEchoFallTimeout() time.Duration {
	return parseOr(c.EchoFallTimeout, rangesensor.DefaultEchoFallTimeout)
}

func parseOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
