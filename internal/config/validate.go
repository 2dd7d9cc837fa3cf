package config

import (
	"fmt"
	"strings"

	"github.com/sweeney/galvo-ctrl/internal/channel"
	"github.com/sweeney/galvo-ctrl/internal/pwm"
	"periph.io/x/conn/v3/physic"
)

// Validate checks configuration correctness.
// It does not mutate the configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- device ----

	id := strings.TrimSpace(cfg.Device.ID)
	if id == "" {
		return fmt.Errorf("device.id must not be empty")
	}
	if strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("device.id %q must not contain MQTT topic characters / + #", id)
	}

	// ---- channels ----

	n := len(cfg.Channels)
	if n < 1 || n > channel.MaxChannels {
		return fmt.Errorf("channels: need 1..%d, got %d", channel.MaxChannels, n)
	}

	// ---- pwm ----

	if cfg.PWM.FrequencyHz <= 0 {
		return fmt.Errorf("pwm.frequency_hz must be positive, got %d", cfg.PWM.FrequencyHz)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.PWM.Backend)) {
	case BackendPin:
		seen := make(map[string]int)
		for i, ch := range cfg.Channels {
			if ch.Pin == "" {
				return fmt.Errorf("channels[%d]: pin backend needs a pin name", i)
			}
			if prev, ok := seen[ch.Pin]; ok {
				return fmt.Errorf("channels[%d]: pin %s already used by channel %d", i, ch.Pin, prev)
			}
			seen[ch.Pin] = i
		}

	case BackendPCA9685:
		freq := physic.Frequency(cfg.PWM.FrequencyHz) * physic.Hertz
		if freq < pwm.PCA9685MinFrequency || freq > pwm.PCA9685MaxFrequency {
			return fmt.Errorf("pwm.frequency_hz %d outside pca9685 range %s..%s",
				cfg.PWM.FrequencyHz, pwm.PCA9685MinFrequency, pwm.PCA9685MaxFrequency)
		}
		if cfg.PWM.I2CAddr == 0 || cfg.PWM.I2CAddr > 0x7f {
			return fmt.Errorf("pwm.i2c_addr 0x%02x is not a 7-bit address", cfg.PWM.I2CAddr)
		}
		seen := make(map[int]int)
		for i, ch := range cfg.Channels {
			if ch.Output < 0 || ch.Output >= pwm.PCA9685Outputs {
				return fmt.Errorf("channels[%d]: output %d outside 0..%d", i, ch.Output, pwm.PCA9685Outputs-1)
			}
			if prev, ok := seen[ch.Output]; ok {
				return fmt.Errorf("channels[%d]: output %d already used by channel %d", i, ch.Output, prev)
			}
			seen[ch.Output] = i
		}

	default:
		return fmt.Errorf("pwm.backend %q: want %q or %q", cfg.PWM.Backend, BackendPin, BackendPCA9685)
	}

	// ---- indicator ----

	if !cfg.Indicator.Disabled {
		if cfg.Indicator.Chip == "" {
			return fmt.Errorf("indicator.chip must not be empty (set indicator.disabled to run without one)")
		}
		if cfg.Indicator.Line < 0 {
			return fmt.Errorf("indicator.line must not be negative, got %d", cfg.Indicator.Line)
		}
	}

	// ---- mqtt / debug ----

	if strings.TrimSpace(cfg.MQTT.Broker) == "" {
		return fmt.Errorf("mqtt.broker must not be empty")
	}
	if cfg.MQTT.Heartbeat < 0 {
		return fmt.Errorf("mqtt.heartbeat must not be negative, got %v", cfg.MQTT.Heartbeat)
	}
	if cfg.Debug.StartupDelay < 0 {
		return fmt.Errorf("debug.startup_delay must not be negative, got %v", cfg.Debug.StartupDelay)
	}

	return nil
}
