// Package rangesensor facilitates measuring distance with an HC-SR04
// ultrasonic ranging module.
package rangesensor

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

const (
	// TriggerPulse is how long the trigger line is held high to start a
	// measurement.
	TriggerPulse = 10 * time.Microsecond

	// SpeedOfSound in centimeters per microsecond, at sea level, around 20
	// celsius.
	SpeedOfSound float32 = 0.0343

	// MaxEchoMicroseconds is the longest echo accepted as a valid reading.
	// A 200cm round trip takes (200 * 2) / 0.0343 = ~11661us; the extra
	// ~100us is headroom.
	MaxEchoMicroseconds = 11765

	// DefaultEchoRiseTimeout bounds the wait for the echo line to go high.
	DefaultEchoRiseTimeout = 100 * time.Millisecond

	// DefaultEchoFallTimeout bounds the wait for the echo line to go low.
	// The module drops echo after ~38ms when nothing reflects.
	DefaultEchoFallTimeout = 40 * time.Millisecond
)

var (
	// ErrNoEcho is returned when the echo line never rose after a trigger.
	ErrNoEcho = errors.New("no timing signal detected")

	// ErrEchoStuck is returned when the echo line rose but did not fall
	// within the sensor's EchoFallTimeout.
	ErrEchoStuck = errors.New("timing signal exceeded valid duration")
)

// Clock is the monotonic time source used to time the echo pulse.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the Clock backed by the time package.
var SystemClock Clock = systemClock{}

// Measurement expresses a sensor measurement and facilitates conversion to
// various units.
type Measurement struct {
	timeOfFlight time.Duration
}

// NewMeasurement wraps a raw echo pulse width.
func NewMeasurement(timeOfFlight time.Duration) *Measurement {
	return &Measurement{timeOfFlight: timeOfFlight}
}

// InMicroseconds returns the raw time of flight measurement.
func (r *Measurement) InMicroseconds() int64 {
	return r.timeOfFlight.Microseconds()
}

// Reading converts the measurement into a range-checked Reading.
func (r *Measurement) Reading() Reading {
	return NewReading(r.InMicroseconds())
}

// Reading is a distance in centimeters, or an invalid marker when the echo
// timed out or fell outside the measurable window.
type Reading struct {
	Centimeters float32
	Valid       bool
}

// Invalid is the Reading for a failed or out-of-window measurement.
var Invalid = Reading{}

// Split returns the whole centimeters and the hundredths, both truncated
// toward zero. 8.575cm splits into 8 and 57.
func (r Reading) Split() (whole, hundredths int) {
	whole = int(r.Centimeters)
	hundredths = int((r.Centimeters - float32(whole)) * 100)
	return whole, hundredths
}

func (r Reading) String() string {
	if !r.Valid {
		return "invalid"
	}
	whole, hundredths := r.Split()
	return fmt.Sprintf("%d.%02dcm", whole, hundredths)
}

// NewReading converts an echo pulse width in microseconds into a Reading.
// Non-positive widths and widths beyond MaxEchoMicroseconds are Invalid.
func NewReading(us int64) Reading {
	if us <= 0 || us > MaxEchoMicroseconds {
		return Invalid
	}
	return Reading{Centimeters: TimeToCentimeters(us), Valid: true}
}

// ReadingOf returns the Reading for the result of MeasureDistance. Any
// error yields Invalid.
func ReadingOf(m *Measurement, err error) Reading {
	if err != nil || m == nil {
		return Invalid
	}
	return m.Reading()
}

// TimeToCentimeters converts a round trip time of flight in microseconds
// into a one way distance in centimeters.
func TimeToCentimeters(timeOfFlight int64) float32 {
	return float32(timeOfFlight) * SpeedOfSound / 2
}

// Sensor represents an HC-SR04 ultrasonic ranging module.
//
// Datasheet: https://cdn.sparkfun.com/datasheets/Sensors/Proximity/HCSR04.pdf
type Sensor struct {
	EchoPin    gpio.PinIO
	TriggerPin gpio.PinIO

	// Clock times the echo pulse. Defaults to SystemClock.
	Clock Clock

	// EchoRiseTimeout bounds the wait for the echo to start. Zero or
	// negative waits forever.
	EchoRiseTimeout time.Duration

	// EchoFallTimeout bounds the width of the echo pulse. Zero or negative
	// waits forever, which hangs the caller if the line sticks high.
	EchoFallTimeout time.Duration
}

// New looks up the named pins and returns an initialized Sensor.
//
// Echo is the name of the GPIO pin connected to the module's "Echo" pin.
// Trigger is the name of the GPIO pin connected to the module's "Trig" pin.
//
// Both names should be in the format expected by
// periph.io/x/periph/conn/gpio/gpioreg.ByName, and host.Init must already
// have been called. For a RaspberryPi, this corresponds to the BCM pin
// number as a string.
func New(echo, trigger string) (*Sensor, error) {
	echoPin := gpioreg.ByName(echo)
	if echoPin == nil {
		return nil, fmt.Errorf("no GPIO echo pin named: %s", echo)
	}
	triggerPin := gpioreg.ByName(trigger)
	if triggerPin == nil {
		return nil, fmt.Errorf("no GPIO trigger pin named: %s", trigger)
	}
	return NewFromPins(echoPin, triggerPin)
}

// NewFromPins configures the given pins and returns a Sensor using the
// default timeouts and SystemClock.
func NewFromPins(echo, trigger gpio.PinIO) (*Sensor, error) {
	s := &Sensor{
		EchoPin:         echo,
		TriggerPin:      trigger,
		Clock:           SystemClock,
		EchoRiseTimeout: DefaultEchoRiseTimeout,
		EchoFallTimeout: DefaultEchoFallTimeout,
	}
	if err := s.TriggerPin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("configuring trigger pin %s: %w", trigger, err)
	}
	if err := s.EchoPin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configuring echo pin %s: %w", echo, err)
	}
	return s, nil
}

func (s *Sensor) clock() Clock {
	if s.Clock == nil {
		return SystemClock
	}
	return s.Clock
}

// Trigger raises the TriggerPin for TriggerPulse to cause the HC-SR04 to
// take a measurement.
func (s *Sensor) Trigger() error {
	if err := s.TriggerPin.Out(gpio.High); err != nil {
		return fmt.Errorf("raising trigger: %w", err)
	}
	s.clock().Sleep(TriggerPulse)
	if err := s.TriggerPin.Out(gpio.Low); err != nil {
		return fmt.Errorf("lowering trigger: %w", err)
	}
	return nil
}

// MeasureDistance triggers the sensor and returns the width of the echo
// pulse. It returns ErrNoEcho if the echo never starts and ErrEchoStuck if
// it does not end within EchoFallTimeout.
func (s *Sensor) MeasureDistance() (*Measurement, error) {
	if err := s.Trigger(); err != nil {
		return nil, err
	}
	clk := s.clock()

	// Await the EchoPin going High, which signals the start of the duration
	if _, ok := WaitForLevel(s.EchoPin, gpio.High, clk, s.EchoRiseTimeout); !ok {
		return nil, ErrNoEcho
	}

	// Await the EchoPin going Low, which signals the end of the duration
	width, ok := WaitForLevel(s.EchoPin, gpio.Low, clk, s.EchoFallTimeout)
	if !ok {
		return nil, ErrEchoStuck
	}
	return &Measurement{width}, nil
}

// WaitForLevel busy-polls pin until it reads level and returns how long
// that took. If bound is positive and elapses first, it returns false.
// A non-positive bound never gives up.
func WaitForLevel(pin gpio.PinIn, level gpio.Level, clk Clock, bound time.Duration) (time.Duration, bool) {
	start := clk.Now()
	for pin.Read() != level {
		if bound > 0 && clk.Now().Sub(start) > bound {
			return clk.Now().Sub(start), false
		}
	}
	return clk.Now().Sub(start), true
}
