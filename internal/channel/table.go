// Package channel owns the per-channel PWM outputs and their last applied
// duty. It is the only place channel indices are bounds checked.
package channel

import (
	"errors"
	"fmt"

	"github.com/sweeney/galvo-ctrl/internal/logic"
)

// MaxChannels is the build-time capacity of the table.
const MaxChannels = 6

// ErrOutOfRange is returned by Apply for an index >= Len().
var ErrOutOfRange = errors.New("channel index out of range")

// Output is one hardware PWM line. Set takes a level on the
// logic.DutyResolution scale and must not block.
type Output interface {
	Set(duty logic.Duty) error
	Close() error
}

type slot struct {
	out  Output
	duty logic.Duty
}

// Table maps channel indices to outputs.
// Not safe for concurrent use; the BLE stack delivers writes serially.
type Table struct {
	slots [MaxChannels]slot
	n     int
}

// New binds outputs to channels 0..len(outputs)-1.
// All stored duties start at 0; call Reset to drive the hardware to match.
func New(outputs []Output) (*Table, error) {
	if len(outputs) == 0 || len(outputs) > MaxChannels {
		return nil, fmt.Errorf("channel: need 1..%d outputs, got %d", MaxChannels, len(outputs))
	}
	t := &Table{n: len(outputs)}
	for i, out := range outputs {
		if out == nil {
			return nil, fmt.Errorf("channel %d: nil output", i)
		}
		t.slots[i].out = out
	}
	return t, nil
}

// Len returns the number of bound channels (N).
func (t *Table) Len() int {
	return t.n
}

// Apply writes duty to the output bound to index, exactly once.
// An index outside [0, N) returns ErrOutOfRange with no hardware call.
// The stored duty only changes when the hardware write succeeds.
func (t *Table) Apply(index int, duty logic.Duty) error {
	if index < 0 || index >= t.n {
		return fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, index, t.n)
	}
	if duty > logic.DutyMax {
		duty = logic.DutyMax
	}
	s := &t.slots[index]
	if err := s.out.Set(duty); err != nil {
		return fmt.Errorf("channel %d: set duty %d: %w", index, duty, err)
	}
	s.duty = duty
	return nil
}

// Duty returns the last applied duty for index.
func (t *Table) Duty(index int) (logic.Duty, bool) {
	if index < 0 || index >= t.n {
		return 0, false
	}
	return t.slots[index].duty, true
}

// Duties returns a copy of every channel's last applied duty.
func (t *Table) Duties() []logic.Duty {
	out := make([]logic.Duty, t.n)
	for i := range out {
		out[i] = t.slots[i].duty
	}
	return out
}

// Reset drives every output to duty 0.
func (t *Table) Reset() error {
	var errs []error
	for i := 0; i < t.n; i++ {
		if err := t.Apply(i, 0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close drives every output to 0 and releases it.
func (t *Table) Close() error {
	errs := []error{t.Reset()}
	for i := 0; i < t.n; i++ {
		if err := t.slots[i].out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
