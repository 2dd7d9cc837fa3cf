package ble

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"
)

// advertisement is the part of *bluetooth.Advertisement the adapter drives.
type advertisement interface {
	Start() error
	Stop() error
}

// Adapter is the peripheral Stack backed by tinygo bluetooth.
type Adapter struct {
	adapter *bluetooth.Adapter
	adv     advertisement
	service bluetooth.UUID
	char    bluetooth.UUID

	// bus carries BlueZ device signals on Linux; nil elsewhere.
	bus   *dbus.Conn
	peers peerTracker

	// mu serializes observer callbacks; BlueZ signals arrive on more than
	// one goroutine.
	mu sync.Mutex
}

// NewAdapter enables the default adapter and configures the advertisement
// with name and the galvo service UUID.
func NewAdapter(name string) (*Adapter, error) {
	service, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}
	char, err := bluetooth.ParseUUID(CharacteristicUUID)
	if err != nil {
		return nil, fmt.Errorf("parse characteristic uuid: %w", err)
	}

	a := bluetooth.DefaultAdapter
	if err := a.Enable(); err != nil {
		return nil, fmt.Errorf("enable ble stack: %w", err)
	}

	adv := a.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{service},
	}); err != nil {
		return nil, fmt.Errorf("configure advertisement: %w", err)
	}

	ad := &Adapter{
		adapter: a,
		adv:     adv,
		service: service,
		char:    char,
	}
	if err := ad.openConnectionEvents(); err != nil {
		return nil, err
	}
	return ad, nil
}

// AddWriteAttribute registers the galvo service. Only whole-value writes
// (offset 0) are delivered; long-write fragments are dropped.
func (a *Adapter) AddWriteAttribute(w WriteObserver) error {
	var handle bluetooth.Characteristic
	err := a.adapter.AddService(&bluetooth.Service{
		UUID: a.service,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &handle,
				UUID:   a.char,
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					if offset != 0 {
						return
					}
					a.mu.Lock()
					defer a.mu.Unlock()
					w.OnWrite(value)
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("add service: %w", err)
	}
	return nil
}

// Advertise (re)starts advertising. BlueZ keeps the advertisement
// registered while a peer is attached, so it is unregistered first; a
// "not started" error from that step is expected and ignored.
// It runs inside connection callbacks, so it must not take a.mu.
func (a *Adapter) Advertise() error {
	_ = a.adv.Stop()
	if err := a.adv.Start(); err != nil {
		return fmt.Errorf("start advertising: %w", err)
	}
	return nil
}
