package rangesensor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/gpio/gpiotest"

	"github.com/asjoyner/obstacle-detector/rangesensor"
	"github.com/asjoyner/obstacle-detector/sensortest"
)

var (
	registeredEcho    = gpiotest.Pin{N: "TestEchoPin", Num: 23, L: gpio.Low}
	registeredTrigger = gpiotest.Pin{N: "TestTriggerPin", Num: 24, L: gpio.High}
)

func init() {
	gpioreg.Register(&registeredEcho)
	gpioreg.Register(&registeredTrigger)
}

func newSensor(t *testing.T, width time.Duration) (*rangesensor.Sensor, *sensortest.Clock, *sensortest.TriggerPin, *sensortest.EchoPin) {
	t.Helper()
	clk, trigger, echo := sensortest.NewRig(width)
	s, err := rangesensor.NewFromPins(echo, trigger)
	require.NoError(t, err)
	s.Clock = clk
	return s, clk, trigger, echo
}

func TestNewByName(t *testing.T) {
	s, err := rangesensor.New("TestEchoPin", "TestTriggerPin")
	require.NoError(t, err)
	assert.Equal(t, gpio.Low, registeredTrigger.Read(), "trigger should idle low")
	assert.Equal(t, rangesensor.DefaultEchoRiseTimeout, s.EchoRiseTimeout)
	assert.Equal(t, rangesensor.DefaultEchoFallTimeout, s.EchoFallTimeout)
}

func TestNewUnknownPin(t *testing.T) {
	_, err := rangesensor.New("NoSuchEcho", "TestTriggerPin")
	assert.ErrorContains(t, err, "no GPIO echo pin named: NoSuchEcho")

	_, err = rangesensor.New("TestEchoPin", "NoSuchTrigger")
	assert.ErrorContains(t, err, "no GPIO trigger pin named: NoSuchTrigger")
}

func TestTrigger(t *testing.T) {
	s, _, trigger, _ := newSensor(t, 500*time.Microsecond)
	require.NoError(t, s.Trigger())

	edges := trigger.Edges()
	require.GreaterOrEqual(t, len(edges), 2)
	high, low := edges[len(edges)-2], edges[len(edges)-1]
	assert.Equal(t, gpio.High, high.Level)
	assert.Equal(t, gpio.Low, low.Level)
	assert.Equal(t, rangesensor.TriggerPulse, low.At-high.At)
}

func TestNoSensor(t *testing.T) {
	s, clk, _, echo := newSensor(t, 0)
	echo.SetPulse(-1, 0)

	_, err := s.MeasureDistance()
	assert.True(t, errors.Is(err, rangesensor.ErrNoEcho), "got %v", err)
	assert.Greater(t, clk.Elapsed(), rangesensor.DefaultEchoRiseTimeout)
}

func TestEchoStuckHigh(t *testing.T) {
	s, clk, _, echo := newSensor(t, -1)

	_, err := s.MeasureDistance()
	assert.True(t, errors.Is(err, rangesensor.ErrEchoStuck), "got %v", err)
	assert.Greater(t, clk.Elapsed(), rangesensor.DefaultEchoFallTimeout)
	assert.Less(t, clk.Elapsed(), rangesensor.DefaultEchoFallTimeout+time.Millisecond)
	assert.Positive(t, echo.Reads())
}

func TestSensor(t *testing.T) {
	for _, width := range []time.Duration{
		100 * time.Microsecond,
		500 * time.Microsecond,
		5 * time.Millisecond,
		rangesensor.MaxEchoMicroseconds * time.Microsecond,
	} {
		s, _, _, _ := newSensor(t, width)
		m, err := s.MeasureDistance()
		require.NoError(t, err)
		assert.Equal(t, width.Microseconds(), m.InMicroseconds())
	}
}

func TestUnboundedFallWait(t *testing.T) {
	s, _, _, _ := newSensor(t, 30*time.Millisecond)
	s.EchoFallTimeout = 0

	m, err := s.MeasureDistance()
	require.NoError(t, err)
	assert.Equal(t, int64(30000), m.InMicroseconds())
}

func TestWaitForLevel(t *testing.T) {
	clk := sensortest.NewClock()
	echo := &sensortest.EchoPin{Pin: gpiotest.Pin{N: "w"}, Clock: clk, Delay: 50 * time.Microsecond, Width: -1}
	echo.Arm()

	waited, ok := rangesensor.WaitForLevel(echo, gpio.High, clk, 0)
	assert.True(t, ok)
	assert.Equal(t, 51*time.Microsecond, waited)

	waited, ok = rangesensor.WaitForLevel(echo, gpio.Low, clk, 20*time.Microsecond)
	assert.False(t, ok)
	assert.Greater(t, waited, 20*time.Microsecond)
}

func TestTimeToCentimeters(t *testing.T) {
	assert.Equal(t, float32(0.0343), rangesensor.TimeToCentimeters(2))
	assert.InDelta(t, 343.0, rangesensor.TimeToCentimeters(20000), 0.01)
}

func TestNewReading(t *testing.T) {
	tests := []struct {
		name  string
		us    int64
		valid bool
		cm    float32
	}{
		{"negative", -5, false, 0},
		{"zero", 0, false, 0},
		{"one microsecond", 1, true, 0.01715},
		{"obstacle", 500, true, 8.575},
		{"no obstacle", 5000, true, 85.75},
		{"beyond print range", 9000, true, 154.35},
		{"max window", rangesensor.MaxEchoMicroseconds, true, 201.76975},
		{"past max window", rangesensor.MaxEchoMicroseconds + 1, false, 0},
		{"nothing reflected", 38000, false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := rangesensor.NewReading(tc.us)
			assert.Equal(t, tc.valid, r.Valid)
			assert.InDelta(t, tc.cm, r.Centimeters, 0.0001)
		})
	}
}

func TestReadingMonotonic(t *testing.T) {
	prev := rangesensor.NewReading(1)
	for us := int64(2); us <= rangesensor.MaxEchoMicroseconds; us++ {
		r := rangesensor.NewReading(us)
		require.True(t, r.Valid)
		require.Greater(t, r.Centimeters, prev.Centimeters, "at %dus", us)
		prev = r
	}
}

func TestReadingOf(t *testing.T) {
	assert.Equal(t, rangesensor.Invalid, rangesensor.ReadingOf(nil, rangesensor.ErrNoEcho))
	assert.Equal(t, rangesensor.Invalid, rangesensor.ReadingOf(nil, rangesensor.ErrEchoStuck))
	m := rangesensor.NewMeasurement(500 * time.Microsecond)
	assert.Equal(t, rangesensor.NewReading(500), rangesensor.ReadingOf(m, nil))
	assert.Equal(t, "8.57cm", rangesensor.ReadingOf(m, nil).String())
	assert.Equal(t, "invalid", rangesensor.Invalid.String())
}

func TestReadingSplitTruncates(t *testing.T) {
	tests := []struct {
		us         int64
		whole      int
		hundredths int
		text       string
	}{
		{1, 0, 1, "0.01cm"},
		{500, 8, 57, "8.57cm"},
		{4665, 80, 0, "80.00cm"},
		{5000, 85, 75, "85.75cm"},
		{9000, 154, 34, "154.34cm"},
		{rangesensor.MaxEchoMicroseconds, 201, 76, "201.76cm"},
	}
	for _, tc := range tests {
		r := rangesensor.NewReading(tc.us)
		whole, hundredths := r.Split()
		assert.Equal(t, tc.whole, whole, "%dus", tc.us)
		assert.Equal(t, tc.hundredths, hundredths, "%dus", tc.us)
		assert.Equal(t, tc.text, r.String())
	}
}

func TestMeasurementHasNoUncheckedDistance(t *testing.T) {
	// Distances only come out of a Measurement through Reading, which
	// applies the echo window.
	m := rangesensor.NewMeasurement(20 * time.Millisecond)
	assert.Equal(t, int64(20000), m.InMicroseconds())
	assert.Equal(t, rangesensor.Invalid, m.Reading())
}
