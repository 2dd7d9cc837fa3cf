// Package logic contains the pure write-path and connection logic of the
// galvanometer controller.
// This package has NO external dependencies (no BLE, GPIO, PWM, MQTT or OS).
// Time is always injectable via time.Time values.
package logic

import "time"

// Duty is a PWM duty level on the 10-bit scale of DutyResolution.
type Duty uint16

const (
	// DutyResolution is the top of the 10-bit PWM scale.
	DutyResolution Duty = 1023
	// DutyMax is the highest duty the mapper ever produces. It sits below
	// DutyResolution to leave headroom at the top of the needle's travel.
	DutyMax Duty = 1000
)

// Command is one decoded write: a raw value and the channel it targets.
type Command struct {
	Value   float32
	Channel uint8
}

// ConnState is the state of the single connection slot.
type ConnState string

const (
	StateIdle      ConnState = "IDLE"
	StateConnected ConnState = "CONNECTED"
)

// EventType identifies what happened on the peripheral.
type EventType string

const (
	EventConnected    EventType = "CONNECTED"
	EventDisconnected EventType = "DISCONNECTED"
	EventWrite        EventType = "WRITE"
	EventIgnored      EventType = "IGNORED"  // payload length not 4 or 5
	EventRejected     EventType = "REJECTED" // channel index out of range
)

// Event describes one connection transition or one handled write.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Channel   int     // WRITE, REJECTED
	Value     float32 // raw decoded value (WRITE, REJECTED); may be NaN or Inf
	Duty      Duty    // WRITE
	Length    int     // payload length (IGNORED)
	Reason    uint8   // disconnect reason, diagnostics only (DISCONNECTED)
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Writes      int
	Ignored     int
	Rejected    int
	Connects    int
	Disconnects int
}

// Add counts one event.
func (c *EventCounts) Add(e Event) {
	switch e.Type {
	case EventWrite:
		c.Writes++
	case EventIgnored:
		c.Ignored++
	case EventRejected:
		c.Rejected++
	case EventConnected:
		c.Connects++
	case EventDisconnected:
		c.Disconnects++
	}
}
