// Package status provides a thread-safe status tracker for the galvo-ctrl daemon.
// It is fed from BLE callbacks and read by the HTTP server and MQTT heartbeats.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/galvo-ctrl/internal/logic"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	DeviceName  string
	Channels    int
	Backend     string
	FrequencyHz int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Verbose     bool
}

// Channel is one channel's last applied state.
type Channel struct {
	Duty      logic.Duty
	Value     float32
	UpdatedAt time.Time // zero until the first write
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; the Channels slice is copied.
type Snapshot struct {
	Conn          logic.ConnState
	ConnSince     time.Time
	Channels      []Channel
	Counts        logic.EventCounts
	Dropped       int64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker for cfg.Channels channels, all at duty 0.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Conn:      logic.StateIdle,
			ConnSince: startTime,
			Channels:  make([]Channel, cfg.Channels),
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Emit records one peripheral event. It implements service.EventSink and
// is called from BLE callbacks, so it only takes the lock briefly.
func (t *Tracker) Emit(e logic.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Counts.Add(e)
	switch e.Type {
	case logic.EventConnected:
		t.snap.Conn = logic.StateConnected
		t.snap.ConnSince = e.Timestamp
	case logic.EventDisconnected:
		t.snap.Conn = logic.StateIdle
		t.snap.ConnSince = e.Timestamp
	case logic.EventWrite:
		if e.Channel >= 0 && e.Channel < len(t.snap.Channels) {
			t.snap.Channels[e.Channel] = Channel{Duty: e.Duty, Value: e.Value, UpdatedAt: e.Timestamp}
		}
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetDropped records how many events the telemetry queue has dropped.
func (t *Tracker) SetDropped(n int64) {
	t.mu.Lock()
	t.snap.Dropped = n
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]Channel(nil), t.snap.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
