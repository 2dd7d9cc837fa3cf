package ble

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
)

// registeredAdvertisement behaves like BlueZ: registering twice fails and
// the registration survives a connection.
type registeredAdvertisement struct {
	registered bool
	starts     int
	stops      int
	startErr   error
}

func (r *registeredAdvertisement) Start() error {
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	if r.registered {
		return errors.New("bluetooth: start advertisement that was already started")
	}
	r.registered = true
	return nil
}

func (r *registeredAdvertisement) Stop() error {
	r.stops++
	if !r.registered {
		return errors.New("bluetooth: stop advertisement that was not started")
	}
	r.registered = false
	return nil
}

func deviceSignal(path string, props map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Name: propertiesChanged,
		Path: dbus.ObjectPath(path),
		Body: []interface{}{bluezDevice, props, []string{}},
	}
}

func connectedSignal(path string, connected bool) *dbus.Signal {
	return deviceSignal(path, map[string]dbus.Variant{"Connected": dbus.MakeVariant(connected)})
}

// readvertiser re-requests advertising on disconnect, as the lifecycle does.
type readvertiser struct {
	recordingObserver
	a    *Adapter
	errs []error
}

func (r *readvertiser) OnDisconnect(reason uint8) {
	r.recordingObserver.OnDisconnect(reason)
	if err := r.a.Advertise(); err != nil {
		r.errs = append(r.errs, err)
	}
}

func TestAdvertiseAfterDisconnect(t *testing.T) {
	adv := &registeredAdvertisement{}
	a := &Adapter{adv: adv}
	obs := &readvertiser{a: a}

	if err := a.Advertise(); err != nil {
		t.Fatalf("initial Advertise: %v", err)
	}

	for i := 0; i < 3; i++ {
		a.deliver(connectedSignal("/org/bluez/hci0/dev_AA", true), obs)
		a.deliver(connectedSignal("/org/bluez/hci0/dev_AA", false), obs)
	}

	if len(obs.errs) != 0 {
		t.Fatalf("re-advertise failed: %v", obs.errs)
	}
	if obs.connect != 3 || len(obs.reasons) != 3 {
		t.Errorf("connects %d, disconnects %d, want 3 each", obs.connect, len(obs.reasons))
	}
	if !adv.registered {
		t.Error("advertisement should be registered after re-advertise")
	}
}

func TestAdvertiseStartError(t *testing.T) {
	adv := &registeredAdvertisement{startErr: errors.New("org.bluez.Error.Failed")}
	a := &Adapter{adv: adv}
	if err := a.Advertise(); err == nil {
		t.Fatal("expected error")
	}
}

func TestConnectedChange(t *testing.T) {
	tests := []struct {
		name          string
		sig           *dbus.Signal
		wantConnected bool
		wantOK        bool
	}{
		{"connected", connectedSignal("/d", true), true, true},
		{"disconnected", connectedSignal("/d", false), false, true},
		{"nil", nil, false, false},
		{"other property", deviceSignal("/d", map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-50))}), false, false},
		{"wrong type", deviceSignal("/d", map[string]dbus.Variant{"Connected": dbus.MakeVariant("yes")}), false, false},
		{"other interface", &dbus.Signal{
			Name: propertiesChanged,
			Body: []interface{}{"org.bluez.Adapter1", map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)}},
		}, false, false},
		{"other signal", &dbus.Signal{
			Name: "org.freedesktop.DBus.ObjectManager.InterfacesAdded",
			Body: []interface{}{bluezDevice, map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)}},
		}, false, false},
		{"short body", &dbus.Signal{Name: propertiesChanged, Body: []interface{}{bluezDevice}}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connected, ok := connectedChange(tt.sig)
			if connected != tt.wantConnected || ok != tt.wantOK {
				t.Errorf("got (%v, %v), want (%v, %v)", connected, ok, tt.wantConnected, tt.wantOK)
			}
		})
	}
}

func TestPeerTrackerSingleSlot(t *testing.T) {
	var p peerTracker
	steps := []struct {
		sig  *dbus.Signal
		want peerEvent
	}{
		{connectedSignal("/dev_A", false), peerNone},     // idle, nothing to release
		{connectedSignal("/dev_A", true), peerConnected}, // A takes the slot
		{connectedSignal("/dev_A", true), peerNone},      // repeated
		{connectedSignal("/dev_B", true), peerNone},      // slot taken
		{connectedSignal("/dev_B", false), peerNone},     // B never held it
		{connectedSignal("/dev_A", false), peerDisconnected},
		{connectedSignal("/dev_B", true), peerConnected},
	}
	for i, s := range steps {
		if got := p.update(s.sig); got != s.want {
			t.Errorf("step %d: got %d, want %d", i, got, s.want)
		}
	}
}
