package detector

import (
	"context"
	"errors"
	"time"

	"github.com/asjoyner/obstacle-detector/internal/monitoring"
	"github.com/asjoyner/obstacle-detector/rangesensor"
)

// DefaultInterval is the idle time between cycles.
const DefaultInterval = 100 * time.Millisecond

// Outcome is everything derived from one reading. It holds no state from
// earlier cycles, so equal readings always produce equal outcomes.
type Outcome struct {
	Reading    rangesensor.Reading
	Category   Category
	Indicators IndicatorState
	Line       string
}

// Evaluate classifies a reading and derives the indicator state and status
// line for it.
func Evaluate(r rangesensor.Reading) Outcome {
	c := Classify(r)
	return Outcome{
		Reading:    r,
		Category:   c,
		Indicators: Indicators(c),
		Line:       FormatReport(r, c),
	}
}

// Options configures a Detector.
type Options struct {
	// Interval is the idle time after each cycle. Defaults to
	// DefaultInterval.
	Interval time.Duration
}

// Detector runs the measure, classify, indicate and report cycle.
type Detector struct {
	rig      *SensorRig
	reporter *Reporter
	interval time.Duration
}

// New returns a Detector that drives rig and writes status lines to
// reporter.
func New(rig *SensorRig, reporter *Reporter, opts Options) *Detector {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Detector{rig: rig, reporter: reporter, interval: opts.Interval}
}

// Cycle takes one measurement, updates the LEDs and emits the status line.
// A failed measurement is reported as out of range; only LED and output
// failures are returned.
func (d *Detector) Cycle() (Outcome, error) {
	m, err := d.rig.Sensor.MeasureDistance()
	if err != nil {
		monitoring.Logf("measurement failed: %v", err)
	}
	o := Evaluate(rangesensor.ReadingOf(m, err))
	return o, errors.Join(d.rig.Show(o.Indicators), d.reporter.Emit(o.Line))
}

// Run prints the banner and cycles until ctx is cancelled. The echo waits
// inside a cycle are not interruptible, so cancellation is checked before
// each cycle and during the idle period.
func (d *Detector) Run(ctx context.Context) error {
	if err := d.reporter.Banner(); err != nil {
		return err
	}
	if err := d.rig.GreenOff(); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		o, err := d.Cycle()
		if err != nil {
			monitoring.Logf("cycle %s: %v", o.Category, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.interval):
		}
	}
}
