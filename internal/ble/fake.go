package ble

import "errors"

// FakeStack is a test double that lets tests deliver stack events directly.
type FakeStack struct {
	// Writer is the registered write observer (nil until AddWriteAttribute).
	Writer WriteObserver

	// Conn is the registered connection observer.
	Conn ConnectionObserver

	// AdvertiseCalls counts Advertise calls.
	AdvertiseCalls int

	// AddError, if set, will be returned by AddWriteAttribute.
	AddError error

	// AdvertiseError, if set, will be returned by Advertise.
	AdvertiseError error

	// OnRegister, if set, runs inside AddWriteAttribute. Tests use it to
	// observe state at the moment the service becomes reachable.
	OnRegister func()
}

// NewFakeStack creates an empty FakeStack.
func NewFakeStack() *FakeStack {
	return &FakeStack{}
}

// AddWriteAttribute records w.
func (f *FakeStack) AddWriteAttribute(w WriteObserver) error {
	if f.AddError != nil {
		return f.AddError
	}
	if f.OnRegister != nil {
		f.OnRegister()
	}
	f.Writer = w
	return nil
}

// SetConnectionObserver records c.
func (f *FakeStack) SetConnectionObserver(c ConnectionObserver) {
	f.Conn = c
}

// Advertise counts the call.
func (f *FakeStack) Advertise() error {
	f.AdvertiseCalls++
	return f.AdvertiseError
}

// Write delivers a write as if a peer wrote p to the characteristic.
func (f *FakeStack) Write(p []byte) error {
	if f.Writer == nil {
		return errors.New("ble: no write attribute registered")
	}
	f.Writer.OnWrite(p)
	return nil
}

// Connect delivers a connect notification.
func (f *FakeStack) Connect() error {
	if f.Conn == nil {
		return errors.New("ble: no connection observer registered")
	}
	f.Conn.OnConnect()
	return nil
}

// Disconnect delivers a disconnect notification with reason.
func (f *FakeStack) Disconnect(reason uint8) error {
	if f.Conn == nil {
		return errors.New("ble: no connection observer registered")
	}
	f.Conn.OnDisconnect(reason)
	return nil
}
