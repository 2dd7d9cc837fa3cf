package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Connection    string        `json:"connection"`
	ConnSince     string        `json:"connection_since"`
	Channels      []ChannelJSON `json:"channels"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Dropped       int64         `json:"dropped_events"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// ChannelJSON is one channel's state.
type ChannelJSON struct {
	Index     int      `json:"index"`
	Duty      int      `json:"duty"`
	Value     *float64 `json:"value"` // null until written, or for NaN/Inf
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Writes      int `json:"writes"`
	Ignored     int `json:"ignored"`
	Rejected    int `json:"rejected"`
	Connects    int `json:"connects"`
	Disconnects int `json:"disconnects"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DeviceName  string `json:"device_name"`
	Channels    int    `json:"channels"`
	Backend     string `json:"pwm_backend"`
	FrequencyHz int64  `json:"pwm_frequency_hz"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	Verbose     bool   `json:"verbose"`
}

// FiniteValue returns v as a float64 pointer, or nil when v is NaN or Inf
// (which encoding/json cannot represent).
func FiniteValue(v float32) *float64 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func buildInner(snap Snapshot) StatusInner {
	channels := make([]ChannelJSON, len(snap.Channels))
	for i, ch := range snap.Channels {
		channels[i] = ChannelJSON{Index: i, Duty: int(ch.Duty)}
		if !ch.UpdatedAt.IsZero() {
			channels[i].Value = FiniteValue(ch.Value)
			channels[i].UpdatedAt = ch.UpdatedAt.UTC().Format(time.RFC3339)
		}
	}

	conn := string(snap.Conn)
	if conn == "" {
		conn = "UNKNOWN"
	}

	return StatusInner{
		Connection:    conn,
		ConnSince:     snap.ConnSince.UTC().Format(time.RFC3339),
		Channels:      channels,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Writes:      snap.Counts.Writes,
			Ignored:     snap.Counts.Ignored,
			Rejected:    snap.Counts.Rejected,
			Connects:    snap.Counts.Connects,
			Disconnects: snap.Counts.Disconnects,
		},
		Dropped: snap.Dropped,
		Config: ConfigJSON{
			DeviceName:  snap.Config.DeviceName,
			Channels:    snap.Config.Channels,
			Backend:     snap.Config.Backend,
			FrequencyHz: snap.Config.FrequencyHz,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			Verbose:     snap.Config.Verbose,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
