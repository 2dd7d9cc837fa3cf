package config

import "strings"

// Normalize applies post-validation cleanup. It must be called only after
// Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Device.ID = strings.TrimSpace(cfg.Device.ID)
	cfg.MQTT.Broker = strings.TrimSpace(cfg.MQTT.Broker)
	cfg.PWM.Backend = strings.ToLower(strings.TrimSpace(cfg.PWM.Backend))

	// Each backend reads only its own channel field.
	for i := range cfg.Channels {
		switch cfg.PWM.Backend {
		case BackendPin:
			cfg.Channels[i].Output = 0
		case BackendPCA9685:
			cfg.Channels[i].Pin = ""
		}
	}
}
