// Package detector turns HC-SR04 readings into an obstacle category, drives
// the status indicators and prints a status line once per cycle.
package detector

import "github.com/asjoyner/obstacle-detector/rangesensor"

const (
	// PrintRangeCM is the farthest distance that is reported as a number.
	PrintRangeCM float32 = 150

	// ObstacleRangeCM is the farthest distance treated as an obstacle.
	ObstacleRangeCM float32 = 80
)

// Category is the proximity class of a reading.
type Category int

const (
	// OutOfRange covers invalid readings and anything beyond PrintRangeCM.
	OutOfRange Category = iota
	// Obstacle is anything within ObstacleRangeCM.
	Obstacle
	// NoObstacle is beyond ObstacleRangeCM but still within PrintRangeCM.
	NoObstacle
)

func (c Category) String() string {
	switch c {
	case Obstacle:
		return "obstacle"
	case NoObstacle:
		return "no obstacle"
	default:
		return "out of range"
	}
}

// Classify maps a reading to its Category. Both thresholds are inclusive:
// 80cm is an Obstacle and 150cm is still NoObstacle.
func Classify(r rangesensor.Reading) Category {
	switch {
	case !r.Valid || r.Centimeters > PrintRangeCM || r.Centimeters < 0:
		return OutOfRange
	case r.Centimeters <= ObstacleRangeCM:
		return Obstacle
	default:
		return NoObstacle
	}
}

// IndicatorState is which of the status LEDs are lit. Green is never lit.
type IndicatorState struct {
	Red  bool
	Blue bool
}

// Green is always off.
func (IndicatorState) Green() bool { return false }

// Indicators maps a Category to the LEDs that show it. Out of range looks
// the same as no obstacle.
func Indicators(c Category) IndicatorState {
	if c == Obstacle {
		return IndicatorState{Blue: true}
	}
	return IndicatorState{Red: true}
}
