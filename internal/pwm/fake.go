package pwm

import "github.com/sweeney/galvo-ctrl/internal/logic"

// FakeOutput records every duty written to it for test assertions.
type FakeOutput struct {
	// Calls contains every duty passed to Set, in order.
	Calls []logic.Duty

	// Level is the last successfully written duty.
	Level logic.Duty

	// SetError, if set, will be returned by Set (the call is still recorded).
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeOutput creates a FakeOutput at level 0.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the duty.
func (f *FakeOutput) Set(duty logic.Duty) error {
	f.Calls = append(f.Calls, duty)
	if f.SetError != nil {
		return f.SetError
	}
	f.Level = duty
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded calls.
func (f *FakeOutput) Reset() {
	f.Calls = nil
	f.Level = 0
	f.SetError = nil
	f.Closed = false
}
