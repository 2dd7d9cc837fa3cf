package pwm

import (
	"fmt"

	"github.com/sweeney/galvo-ctrl/internal/logic"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
)

// Board is a PCA9685 16-channel PWM controller on an I2C bus.
type Board struct {
	bus i2c.BusCloser
	dev *pca9685.Dev
}

// OpenPCA9685 opens the I2C bus (empty name = first available), binds the
// board at addr and sets its output frequency. Init must have been called.
func OpenPCA9685(busName string, addr uint16, freq physic.Frequency) (*Board, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	dev, err := pca9685.NewI2C(bus, addr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685 at 0x%02x: %w", addr, err)
	}
	if freq <= 0 {
		freq = DefaultPCA9685Frequency
	}
	if freq < PCA9685MinFrequency || freq > PCA9685MaxFrequency {
		bus.Close()
		return nil, fmt.Errorf("pca9685 frequency %s outside %s..%s", freq, PCA9685MinFrequency, PCA9685MaxFrequency)
	}
	if err := dev.SetPwmFreq(freq); err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685 set frequency %s: %w", freq, err)
	}
	return &Board{bus: bus, dev: dev}, nil
}

// Output returns the output for board channel n (0..15).
func (b *Board) Output(n int) (*BoardOutput, error) {
	if n < 0 || n >= PCA9685Outputs {
		return nil, fmt.Errorf("pca9685: output %d out of range", n)
	}
	return &BoardOutput{board: b, n: n}, nil
}

// Close turns every board output off and releases the bus.
func (b *Board) Close() error {
	offErr := b.dev.SetAllPwm(0, 0)
	if err := b.bus.Close(); err != nil {
		return fmt.Errorf("close i2c bus: %w", err)
	}
	if offErr != nil {
		return fmt.Errorf("pca9685 all off: %w", offErr)
	}
	return nil
}

// BoardOutput is one PCA9685 channel.
type BoardOutput struct {
	board *Board
	n     int
}

// Set writes the channel's off count; the on count is always 0.
func (o *BoardOutput) Set(duty logic.Duty) error {
	off := gpio.Duty(scale(duty, pca9685Top))
	if err := o.board.dev.SetPwm(o.n, 0, off); err != nil {
		return fmt.Errorf("pca9685 output %d: %w", o.n, err)
	}
	return nil
}

// Close drives the channel to 0. The board itself is closed separately.
func (o *BoardOutput) Close() error {
	return o.Set(0)
}
