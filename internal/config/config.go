// Package config holds the daemon configuration: defaults, an optional YAML
// file and command-line overrides applied on top by main.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sweeney/galvo-ctrl/internal/channel"
	"github.com/sweeney/galvo-ctrl/internal/gpio"
	"github.com/sweeney/galvo-ctrl/internal/pwm"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// PWM backends.
const (
	BackendPin     = "pin"
	BackendPCA9685 = "pca9685"
)

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Channels  []ChannelConfig `yaml:"channels"`
	PWM       PWMConfig       `yaml:"pwm"`
	Indicator IndicatorConfig `yaml:"indicator"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	HTTP      HTTPConfig      `yaml:"http"`
	Debug     DebugConfig     `yaml:"debug"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	// ID names this controller in MQTT topics and the client ID.
	ID string `yaml:"id"`
}

// ---- CHANNELS ----

// ChannelConfig is one galvo output. Channel i in the wire protocol is
// Channels[i]. Pin is used by the pin backend, Output by pca9685.
type ChannelConfig struct {
	Pin    string `yaml:"pin,omitempty"`
	Output int    `yaml:"output"`
}

// ---- PWM ----

type PWMConfig struct {
	Backend     string `yaml:"backend"`
	FrequencyHz int64  `yaml:"frequency_hz"`
	I2CBus      string `yaml:"i2c_bus"` // "" selects the first bus
	I2CAddr     uint16 `yaml:"i2c_addr"`
}

// ---- INDICATOR ----

type IndicatorConfig struct {
	Disabled  bool   `yaml:"disabled"`
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
}

// ---- MQTT / HTTP ----

type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // "" disables
}

// ---- DEBUG ----

type DebugConfig struct {
	Verbose      bool          `yaml:"verbose"`
	StartupDelay time.Duration `yaml:"startup_delay"`
}

// Default returns the configuration used when no file is given: six
// channels on a PCA9685 at 0x40, indicator on gpiochip0 line 17.
func Default() *Config {
	cfg := &Config{
		Device: DeviceConfig{ID: "galvo"},
		PWM: PWMConfig{
			Backend:     BackendPCA9685,
			FrequencyHz: int64(pwm.DefaultPCA9685Frequency / physic.Hertz),
			I2CBus:      pwm.DefaultI2CBus,
			I2CAddr:     pwm.DefaultPCA9685Addr,
		},
		Indicator: IndicatorConfig{Chip: gpio.DefaultChip, Line: gpio.DefaultLine},
		MQTT: MQTTConfig{
			Broker:    "tcp://192.168.1.200:1883",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{Addr: ":80"},
	}
	for i := 0; i < channel.MaxChannels; i++ {
		cfg.Channels = append(cfg.Channels, ChannelConfig{Output: i})
	}
	return cfg
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values; a channels list replaces the default one.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
