package status

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/galvo-ctrl/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{DeviceName: "GalvoCtrl", Channels: 3, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Conn != logic.StateIdle {
		t.Errorf("Conn: got %q, want IDLE", snap.Conn)
	}
	if len(snap.Channels) != 3 {
		t.Fatalf("Channels: got %d, want 3", len(snap.Channels))
	}
	for i, ch := range snap.Channels {
		if ch.Duty != 0 {
			t.Errorf("channel %d: got duty %d, want 0", i, ch.Duty)
		}
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestEmitTracksConnection(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, Config{Channels: 1})

	at := start.Add(time.Minute)
	tr.Emit(logic.Event{Type: logic.EventConnected, Timestamp: at})
	snap := tr.Snapshot()
	if snap.Conn != logic.StateConnected {
		t.Errorf("Conn: got %q, want CONNECTED", snap.Conn)
	}
	if !snap.ConnSince.Equal(at) {
		t.Errorf("ConnSince: got %v, want %v", snap.ConnSince, at)
	}

	tr.Emit(logic.Event{Type: logic.EventDisconnected, Timestamp: at.Add(time.Second)})
	snap = tr.Snapshot()
	if snap.Conn != logic.StateIdle {
		t.Errorf("Conn: got %q, want IDLE", snap.Conn)
	}
	if snap.Counts.Connects != 1 || snap.Counts.Disconnects != 1 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
}

func TestEmitTracksWrites(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Channels: 3})

	at := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)
	tr.Emit(logic.Event{Type: logic.EventWrite, Channel: 2, Value: 1.0, Duty: 1000, Timestamp: at})
	tr.Emit(logic.Event{Type: logic.EventRejected, Channel: 7, Value: 0.5})
	tr.Emit(logic.Event{Type: logic.EventIgnored, Length: 2})

	snap := tr.Snapshot()
	if snap.Channels[2].Duty != 1000 {
		t.Errorf("channel 2 duty: got %d, want 1000", snap.Channels[2].Duty)
	}
	if !snap.Channels[2].UpdatedAt.Equal(at) {
		t.Errorf("channel 2 UpdatedAt: got %v", snap.Channels[2].UpdatedAt)
	}
	if snap.Channels[0].Duty != 0 {
		t.Errorf("channel 0 should be untouched, got %d", snap.Channels[0].Duty)
	}
	want := logic.EventCounts{Writes: 1, Rejected: 1, Ignored: 1}
	if snap.Counts != want {
		t.Errorf("Counts: got %+v, want %+v", snap.Counts, want)
	}
}

func TestEmitWriteOutsideTrackedChannels(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Channels: 1})
	tr.Emit(logic.Event{Type: logic.EventWrite, Channel: 4, Duty: 100})
	if snap := tr.Snapshot(); snap.Channels[0].Duty != 0 {
		t.Errorf("channel 0 changed: %d", snap.Channels[0].Duty)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Channels: 2})
	tr.Emit(logic.Event{Type: logic.EventWrite, Channel: 0, Duty: 100, Timestamp: time.Now()})

	snap1 := tr.Snapshot()

	tr.Emit(logic.Event{Type: logic.EventWrite, Channel: 0, Duty: 900, Timestamp: time.Now()})
	tr.Emit(logic.Event{Type: logic.EventConnected, Timestamp: time.Now()})

	if snap1.Channels[0].Duty != 100 {
		t.Error("snapshot should be a copy; channel duty was modified")
	}
	if snap1.Conn != logic.StateIdle {
		t.Error("snapshot should be a copy; Conn was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Conn:      logic.StateConnected,
		ConnSince: start.Add(10 * time.Minute),
		Channels: []Channel{
			{Duty: 500, Value: 0.5, UpdatedAt: start.Add(11 * time.Minute)},
			{},
		},
		Counts:        logic.EventCounts{Writes: 5, Ignored: 2, Connects: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{DeviceName: "GalvoCtrl", Channels: 2, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Connection != "CONNECTED" {
		t.Errorf("Connection: got %q, want CONNECTED", parsed.Status.Connection)
	}
	if len(parsed.Status.Channels) != 2 {
		t.Fatalf("Channels: got %d, want 2", len(parsed.Status.Channels))
	}
	ch0 := parsed.Status.Channels[0]
	if ch0.Duty != 500 || ch0.Value == nil || *ch0.Value != 0.5 {
		t.Errorf("channel 0: got %+v", ch0)
	}
	if parsed.Status.Channels[1].Value != nil {
		t.Error("unwritten channel should have null value")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Writes != 5 || parsed.Status.Counts.Ignored != 2 {
		t.Errorf("Counts: got %+v", parsed.Status.Counts)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONNonFiniteValue(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Conn: logic.StateIdle,
		Channels: []Channel{
			{Duty: 0, Value: float32(math.NaN()), UpdatedAt: start},
			{Duty: 1000, Value: float32(math.Inf(1)), UpdatedAt: start},
		},
		StartTime: start,
		Now:       start,
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("NaN/Inf values must still produce valid JSON: %v", err)
	}
	for i, ch := range parsed.Status.Channels {
		if ch.Value != nil {
			t.Errorf("channel %d: expected null value, got %v", i, *ch.Value)
		}
	}
	if parsed.Status.Channels[1].Duty != 1000 {
		t.Errorf("channel 1 duty: got %d, want 1000", parsed.Status.Channels[1].Duty)
	}
}

func TestFormatJSONUnknownConnection(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Connection != "UNKNOWN" {
		t.Errorf("Connection: got %q, want UNKNOWN", parsed.Status.Connection)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Conn:      logic.StateIdle,
		Channels:  []Channel{{Duty: 250}},
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Channels[0].Duty != 250 {
		t.Errorf("channel 0 duty: got %d, want 250", parsed.Status.Channels[0].Duty)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("got event=%q reason=%q", parsed.Status.Event, parsed.Status.Reason)
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Channels: 2})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Emit(logic.Event{Type: logic.EventWrite, Channel: i % 2, Duty: logic.Duty(i % 1000)})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetDropped(int64(i))
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
