// Package pwm drives the galvanometer's PWM outputs.
// The real implementations use periph.io: SoC PWM pins or a PCA9685 board.
// The fake implementation allows testing without hardware.
package pwm

import (
	"sync"

	"github.com/sweeney/galvo-ctrl/internal/logic"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// DefaultFrequency is the PWM carrier frequency for SoC pin outputs.
const DefaultFrequency = 5 * physic.KiloHertz

// PCA9685 defaults. The board's prescaler limits it to 24..1526 Hz.
const (
	DefaultI2CBus           = "" // first bus periph finds
	DefaultPCA9685Addr      = 0x40
	DefaultPCA9685Frequency = physic.KiloHertz
	PCA9685MinFrequency     = 24 * physic.Hertz
	PCA9685MaxFrequency     = 1526 * physic.Hertz
	PCA9685Outputs          = 16
	pca9685Top              = 4095
)

var (
	initOnce sync.Once
	initErr  error
)

// Init loads periph.io host drivers. Safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		_, initErr = host.Init()
	})
	return initErr
}

// scale converts a duty on the logic.DutyResolution scale to [0, top].
func scale(d logic.Duty, top int64) int64 {
	if d > logic.DutyResolution {
		d = logic.DutyResolution
	}
	return int64(d) * top / int64(logic.DutyResolution)
}
