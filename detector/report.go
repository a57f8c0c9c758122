package detector

import (
	"fmt"
	"io"

	"github.com/asjoyner/obstacle-detector/rangesensor"
)

const (
	// Banner is printed once at startup.
	Banner = "KL25Z Obstacle Detector (Max Print: 1.5m)"

	// OutOfRangeLine replaces the distance for anything not printable,
	// including valid readings between 150cm and 200cm.
	OutOfRangeLine = "Distance: Out of Range (>150cm)"

	lineEnding = "\r\n"
)

// FormatReport renders the status line for a reading. The distance is
// split into whole and hundredths by truncation, never rounding, so 8.575cm
// prints as 8.57.
func FormatReport(r rangesensor.Reading, c Category) string {
	var status string
	switch c {
	case Obstacle:
		status = "Obstacle Detected!"
	case NoObstacle:
		status = "No Obstacle"
	default:
		return OutOfRangeLine
	}
	whole, hundredths := r.Split()
	return fmt.Sprintf("Distance: %d.%02d cm | Status: %s", whole, hundredths, status)
}

// Reporter writes CRLF terminated status lines to a serial console or any
// other line oriented sink.
type Reporter struct {
	w io.Writer
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Banner writes the startup line.
func (r *Reporter) Banner() error {
	return r.Emit(Banner)
}

// Emit writes a single line.
func (r *Reporter) Emit(line string) error {
	if _, err := io.WriteString(r.w, line+lineEnding); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
