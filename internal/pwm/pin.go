package pwm

import (
	"errors"
	"fmt"

	"github.com/sweeney/galvo-ctrl/internal/logic"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

// PinOutput drives a SoC pin with hardware PWM.
type PinOutput struct {
	name string
	pin  gpio.PinIO
	freq physic.Frequency
}

// NewPinOutput looks up a pin by name (e.g. "GPIO18") and returns an output
// running at freq. Init must have been called.
func NewPinOutput(name string, freq physic.Frequency) (*PinOutput, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pwm: unknown pin %q", name)
	}
	if freq <= 0 {
		freq = DefaultFrequency
	}
	return &PinOutput{name: name, pin: p, freq: freq}, nil
}

// Set sets the pin's duty cycle.
func (o *PinOutput) Set(duty logic.Duty) error {
	if duty == 0 {
		// A zero duty is a steady low; some drivers reject PWM(0).
		if err := o.pin.Out(gpio.Low); err != nil {
			return fmt.Errorf("pwm %s: %w", o.name, err)
		}
		return nil
	}
	d := gpio.Duty(scale(duty, int64(gpio.DutyMax)))
	if err := o.pin.PWM(d, o.freq); err != nil {
		return fmt.Errorf("pwm %s: %w", o.name, err)
	}
	return nil
}

// Close leaves the pin driven low and stops PWM.
func (o *PinOutput) Close() error {
	var errs []error
	if err := o.pin.Out(gpio.Low); err != nil {
		errs = append(errs, fmt.Errorf("pwm %s: drive low: %w", o.name, err))
	}
	if err := o.pin.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("pwm %s: halt: %w", o.name, err))
	}
	return errors.Join(errs...)
}

// String returns the pin name.
func (o *PinOutput) String() string {
	return o.name
}
