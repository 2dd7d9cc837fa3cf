package ble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"
)

// ErrNotFound is returned by Find when no device matched before the
// context expired.
var ErrNotFound = errors.New("galvo controller not found")

// Sighting is one advertisement seen during a scan.
type Sighting struct {
	Address string
	Name    string
	RSSI    int16
	Galvo   bool
}

// scanner is the scanning half of *bluetooth.Adapter.
type scanner interface {
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// stopRetry is how often a cancelled Find retries StopScan while the scan
// has not started yet.
const stopRetry = 50 * time.Millisecond

// Central is the client side: it finds a controller and writes to it.
type Central struct {
	adapter *bluetooth.Adapter
	scan    scanner
	service bluetooth.UUID
	char    bluetooth.UUID
}

// NewCentral enables the default adapter for scanning.
func NewCentral() (*Central, error) {
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
	return &Central{adapter: a, scan: a, service: service, char: char}, nil
}

// Find scans until a controller advertises (by name or service UUID) or
// ctx is done. With all set, scanning continues until ctx is done and
// every sighting is passed to seen; the first match is still returned.
func (c *Central) Find(ctx context.Context, all bool, seen func(Sighting)) (bluetooth.Address, error) {
	var (
		found bluetooth.Address
		ok    bool
	)

	if ctx.Err() != nil {
		return bluetooth.Address{}, ErrNotFound
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
			return
		}
		// StopScan fails until Scan is running.
		for c.scan.StopScan() != nil {
			select {
			case <-stop:
				return
			case <-time.After(stopRetry):
			}
		}
	}()
	defer close(stop)

	err := c.scan.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		match := Matches(r.LocalName(), r.HasServiceUUID(c.service))
		if seen != nil {
			seen(Sighting{
				Address: r.Address.String(),
				Name:    r.LocalName(),
				RSSI:    r.RSSI,
				Galvo:   match,
			})
		}
		if match && !ok {
			found, ok = r.Address, true
			if !all {
				a.StopScan()
			}
		}
	})
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("scan: %w", err)
	}
	if !ok {
		return bluetooth.Address{}, ErrNotFound
	}
	return found, nil
}

// Connect opens a connection to addr and resolves the galvo characteristic.
func (c *Central) Connect(addr bluetooth.Address) (*Link, error) {
	dev, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr.String(), err)
	}
	services, err := dev.DiscoverServices([]bluetooth.UUID{c.service})
	if err != nil || len(services) == 0 {
		dev.Disconnect()
		return nil, fmt.Errorf("discover galvo service: %w", errOrMissing(err))
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{c.char})
	if err != nil || len(chars) == 0 {
		dev.Disconnect()
		return nil, fmt.Errorf("discover galvo characteristic: %w", errOrMissing(err))
	}
	return &Link{device: dev, char: chars[0]}, nil
}

func errOrMissing(err error) error {
	if err != nil {
		return err
	}
	return errors.New("not present")
}

// Link is an open connection to a controller.
type Link struct {
	device bluetooth.Device
	char   bluetooth.DeviceCharacteristic
}

// Write sends one payload without waiting for a response.
func (l *Link) Write(p []byte) error {
	if _, err := l.char.WriteWithoutResponse(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close disconnects.
func (l *Link) Close() error {
	return l.device.Disconnect()
}
