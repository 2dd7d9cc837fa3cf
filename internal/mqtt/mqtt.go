// Package mqtt provides MQTT telemetry publishing and the command
// subscriber used by the client's watch mode.
package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/galvo-ctrl/internal/logic"
)

// TopicPrefix is the root of every topic the daemon publishes to.
const TopicPrefix = "galvo"

// EventsTopic is the topic for write and connection events of device.
func EventsTopic(device string) string {
	return TopicPrefix + "/" + device + "/events"
}

// SystemTopic is the topic for lifecycle events of device.
func SystemTopic(device string) string {
	return TopicPrefix + "/" + device + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a peripheral event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // "SIGTERM", "SIGINT", "FAULT" (shutdown only)
	RawPayload []byte // if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message for one peripheral event.
type Payload struct {
	Galvo GalvoPayload `json:"galvo"`
}

// GalvoPayload contains the event details. Fields that do not apply to the
// event type are omitted.
type GalvoPayload struct {
	Timestamp string   `json:"timestamp"`
	Event     string   `json:"event"`
	Channel   *int     `json:"channel,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Duty      *int     `json:"duty,omitempty"`
	Length    *int     `json:"length,omitempty"`
	Reason    *int     `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a peripheral event.
// Non-finite values are omitted since JSON cannot carry them.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := GalvoPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
	}
	switch event.Type {
	case logic.EventWrite:
		duty := int(event.Duty)
		p.Channel = intPtr(event.Channel)
		p.Value = finite(event.Value)
		p.Duty = &duty
	case logic.EventRejected:
		p.Channel = intPtr(event.Channel)
		p.Value = finite(event.Value)
	case logic.EventIgnored:
		p.Length = intPtr(event.Length)
	case logic.EventDisconnected:
		p.Reason = intPtr(int(event.Reason))
	}
	return json.Marshal(Payload{Galvo: p})
}

func intPtr(v int) *int { return &v }

func finite(v float32) *float64 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// SystemPayload is the payload for system events that carry no status
// snapshot (the Last Will).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the Last Will published by the broker when the daemon
// vanishes. It has no timestamp because it is fixed at connect time.
func WillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE"}})
	return data
}

// ParseValue reads a watch-mode message: a bare number, either a value in
// [0, 1] or, with percent set, a percentage p written as 1 - p/100.
func ParseValue(payload []byte, percent bool) (float32, error) {
	s := strings.TrimSpace(string(payload))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	if percent {
		if f < 0 || f > 100 {
			return 0, fmt.Errorf("percentage %v outside [0, 100]", f)
		}
		f = 1 - f/100
	}
	if math.IsNaN(f) || f < 0 || f > 1 {
		return 0, fmt.Errorf("value %v outside [0, 1]", f)
	}
	return float32(f), nil
}
