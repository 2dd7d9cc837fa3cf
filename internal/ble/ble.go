// Package ble connects the controller to a Bluetooth LE stack.
// The real implementation uses tinygo.org/x/bluetooth (BlueZ on Linux).
// The fake implementation allows testing without a radio.
package ble

// Advertised identity. Clients match on either the name or the service UUID,
// because the advertisement may not have room for the name.
const (
	DeviceName         = "GalvoCtrl"
	ServiceUUID        = "e0f3a8b1-4c6d-4e9f-8b2a-7d1c5f3e9a0b"
	CharacteristicUUID = "a1b2c3d4-5e6f-7890-abcd-ef1234567890"
)

// ReasonUnknown is reported when the stack does not expose a disconnect reason.
const ReasonUnknown uint8 = 0

// WriteObserver receives every write to the galvo characteristic.
type WriteObserver interface {
	OnWrite(p []byte)
}

// ConnectionObserver receives connect and disconnect notifications.
type ConnectionObserver interface {
	OnConnect()
	OnDisconnect(reason uint8)
}

// Stack is the peripheral side of the BLE stack. Callbacks to the observers
// are delivered serially.
type Stack interface {
	// AddWriteAttribute registers the galvo service with its single
	// write-only characteristic.
	AddWriteAttribute(w WriteObserver) error

	// SetConnectionObserver registers c for connect/disconnect events.
	SetConnectionObserver(c ConnectionObserver)

	// Advertise starts (or restarts) advertising the device.
	Advertise() error
}

// Matches reports whether an advertisement belongs to a galvo controller.
func Matches(localName string, hasService bool) bool {
	return localName == DeviceName || hasService
}
