package ble

import "github.com/godbus/dbus/v5"

const (
	bluezDevice       = "org.bluez.Device1"
	propertiesIface   = "org.freedesktop.DBus.Properties"
	propertiesChanged = propertiesIface + ".PropertiesChanged"
)

type peerEvent int

const (
	peerNone peerEvent = iota
	peerConnected
	peerDisconnected
)

// peerTracker turns BlueZ Device1 "Connected" changes into notifications
// for the single connection slot. Only the device that took the slot can
// release it.
type peerTracker struct {
	peer dbus.ObjectPath
}

func (t *peerTracker) update(sig *dbus.Signal) peerEvent {
	connected, ok := connectedChange(sig)
	if !ok {
		return peerNone
	}
	switch {
	case connected && t.peer == "":
		t.peer = sig.Path
		return peerConnected
	case !connected && t.peer != "" && sig.Path == t.peer:
		t.peer = ""
		return peerDisconnected
	}
	return peerNone
}

// connectedChange extracts the Connected property from a device's
// PropertiesChanged signal.
func connectedChange(sig *dbus.Signal) (connected, ok bool) {
	if sig == nil || sig.Name != propertiesChanged || len(sig.Body) < 2 {
		return false, false
	}
	if iface, _ := sig.Body[0].(string); iface != bluezDevice {
		return false, false
	}
	props, isMap := sig.Body[1].(map[string]dbus.Variant)
	if !isMap {
		return false, false
	}
	v, exists := props["Connected"]
	if !exists {
		return false, false
	}
	connected, ok = v.Value().(bool)
	return connected, ok
}

// deliver passes one bus signal to c, serialized with writes.
func (a *Adapter) deliver(sig *dbus.Signal, c ConnectionObserver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.peers.update(sig) {
	case peerConnected:
		c.OnConnect()
	case peerDisconnected:
		c.OnDisconnect(ReasonUnknown)
	}
}
