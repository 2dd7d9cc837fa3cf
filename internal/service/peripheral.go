// Package service wires the write path and the connection lifecycle to the
// BLE stack.
package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/galvo-ctrl/internal/ble"
	"github.com/sweeney/galvo-ctrl/internal/channel"
	"github.com/sweeney/galvo-ctrl/internal/logic"
)

// EventSink receives one event per handled write or connection transition.
// Emit is called from inside stack callbacks and must not block.
type EventSink interface {
	Emit(e logic.Event)
}

// Options configures a Peripheral.
type Options struct {
	// Verbose enables debug-level logging of ignored and rejected writes.
	Verbose bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Fault is called when the stack cannot re-advertise. The peripheral
	// cannot recover from that; the caller should restart the process.
	Fault func(error)
}

// Peripheral is the galvo GATT service: a write observer and a connection
// observer registered with a ble.Stack.
type Peripheral struct {
	stack     ble.Stack
	table     *channel.Table
	lifecycle *logic.Lifecycle
	sink      EventSink
	verbose   bool
	now       func() time.Time
	fault     func(error)
}

// New composes a peripheral. sink may be nil.
func New(stack ble.Stack, table *channel.Table, indicator logic.Indicator, sink EventSink, opts Options) *Peripheral {
	p := &Peripheral{
		stack:     stack,
		table:     table,
		lifecycle: logic.NewLifecycle(indicator, stack),
		sink:      sink,
		verbose:   opts.Verbose,
		now:       opts.Now,
		fault:     opts.Fault,
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Start drives every output to 0, then registers with the stack and starts
// advertising. No peer can reach the service before the outputs are zeroed.
func (p *Peripheral) Start() error {
	if err := p.table.Reset(); err != nil {
		return fmt.Errorf("zero outputs: %w", err)
	}
	if err := p.stack.AddWriteAttribute(p); err != nil {
		return fmt.Errorf("register service: %w", err)
	}
	p.stack.SetConnectionObserver(p)
	if err := p.stack.Advertise(); err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	return nil
}

// State returns the connection state.
func (p *Peripheral) State() logic.ConnState {
	return p.lifecycle.State()
}

// OnWrite decodes, maps and applies one write. Malformed lengths and
// out-of-range channels are dropped with a debug log; nothing here fails.
func (p *Peripheral) OnWrite(payload []byte) {
	cmd, ok := logic.Decode(payload)
	if !ok {
		p.debugf("ignoring %d-byte write", len(payload))
		p.emit(logic.Event{Type: logic.EventIgnored, Length: len(payload)})
		return
	}

	duty := logic.MapDuty(cmd.Value)
	ch := int(cmd.Channel)
	if err := p.table.Apply(ch, duty); err != nil {
		if errors.Is(err, channel.ErrOutOfRange) {
			p.debugf("rejecting write: %v", err)
			p.emit(logic.Event{Type: logic.EventRejected, Channel: ch, Value: cmd.Value})
			return
		}
		log.Printf("write failed: %v", err)
		return
	}

	p.debugf("channel %d: value=%g duty=%d", ch, cmd.Value, duty)
	p.emit(logic.Event{Type: logic.EventWrite, Channel: ch, Value: cmd.Value, Duty: duty})
}

// OnConnect handles a stack connect notification.
func (p *Peripheral) OnConnect() {
	changed, err := p.lifecycle.OnConnect()
	if err != nil {
		log.Printf("connect: %v", err)
	}
	if !changed {
		p.debugf("connect while already connected, ignored")
		return
	}
	log.Printf("peer connected")
	p.emit(logic.Event{Type: logic.EventConnected})
}

// OnDisconnect handles a stack disconnect notification.
func (p *Peripheral) OnDisconnect(reason uint8) {
	changed, err := p.lifecycle.OnDisconnect(reason)
	if !changed {
		p.debugf("disconnect while idle, ignored")
		return
	}
	log.Printf("peer disconnected (reason 0x%02x), advertising", reason)
	p.emit(logic.Event{Type: logic.EventDisconnected, Reason: reason})
	if err == nil {
		return
	}
	if errors.Is(err, logic.ErrAdvertise) && p.fault != nil {
		p.fault(err)
		return
	}
	log.Printf("disconnect: %v", err)
}

func (p *Peripheral) emit(e logic.Event) {
	if p.sink == nil {
		return
	}
	e.Timestamp = p.now()
	p.sink.Emit(e)
}

func (p *Peripheral) debugf(format string, args ...any) {
	if p.verbose {
		log.Printf("debug: "+format, args...)
	}
}
