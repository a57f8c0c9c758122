package detector

import (
	"errors"
	"fmt"

	"periph.io/x/periph/conn/gpio"

	"github.com/asjoyner/obstacle-detector/rangesensor"
)

// SensorRig owns the ranging module and the three indicator LEDs. It is
// built once at startup and used only by the control loop.
type SensorRig struct {
	Sensor *rangesensor.Sensor
	Red    gpio.PinOut
	Blue   gpio.PinOut
	Green  gpio.PinOut

	// ActiveLow is set when an LED lights with its pin driven low, as on
	// the KL25Z board.
	ActiveLow bool
}

func (r *SensorRig) level(on bool) gpio.Level {
	return gpio.Level(on != r.ActiveLow)
}

// Show drives all three LEDs to match s. Green is written off every time.
func (r *SensorRig) Show(s IndicatorState) error {
	var errs []error
	for _, led := range []struct {
		pin gpio.PinOut
		on  bool
	}{
		{r.Green, s.Green()},
		{r.Blue, s.Blue},
		{r.Red, s.Red},
	} {
		if led.pin == nil {
			continue
		}
		if err := led.pin.Out(r.level(led.on)); err != nil {
			errs = append(errs, fmt.Errorf("setting %s: %w", led.pin, err))
		}
	}
	return errors.Join(errs...)
}

// GreenOff turns the green LED off.
func (r *SensorRig) GreenOff() error {
	if r.Green == nil {
		return nil
	}
	return r.Green.Out(r.level(false))
}
