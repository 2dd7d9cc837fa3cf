//go:build !linux

package ble

import "tinygo.org/x/bluetooth"

func (a *Adapter) openConnectionEvents() error { return nil }

// SetConnectionObserver registers c. The stack does not report a reason
// code, so disconnects carry ReasonUnknown.
func (a *Adapter) SetConnectionObserver(c ConnectionObserver) {
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if connected {
			c.OnConnect()
			return
		}
		c.OnDisconnect(ReasonUnknown)
	})
}

// Close is a no-op.
func (a *Adapter) Close() error { return nil }
