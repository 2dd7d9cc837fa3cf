//go:build linux

package ble

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"
)

// openConnectionEvents subscribes to BlueZ device property changes. The
// Linux backend of tinygo bluetooth never calls its connect handler, so
// connection state is read from the bus directly.
func (a *Adapter) openConnectionEvents() error {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}
	if err := bus.AddMatchSignal(
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, bluezDevice),
	); err != nil {
		bus.Close()
		return fmt.Errorf("watch bluez devices: %w", err)
	}
	a.bus = bus
	return nil
}

// SetConnectionObserver registers c. BlueZ does not report a reason code,
// so disconnects carry ReasonUnknown.
func (a *Adapter) SetConnectionObserver(c ConnectionObserver) {
	sigs := make(chan *dbus.Signal, 16)
	a.bus.Signal(sigs)
	go func() {
		for sig := range sigs {
			a.deliver(sig, c)
		}
		log.Printf("ble: system bus signal channel closed")
	}()
}

// Close releases the system bus connection.
func (a *Adapter) Close() error {
	return a.bus.Close()
}
