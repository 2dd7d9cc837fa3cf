package gpio

// FakeIndicator is a test double that records indicator writes.
type FakeIndicator struct {
	// On is the current logical state.
	On bool

	// History contains every value passed to Set, in order.
	History []bool

	// SetError, if set, will be returned by Set and On is left unchanged.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeIndicator creates a FakeIndicator that starts off.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{}
}

// Set records the value.
func (f *FakeIndicator) Set(on bool) error {
	f.History = append(f.History, on)
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	return nil
}

// Close turns the fake off and marks it closed.
func (f *FakeIndicator) Close() error {
	f.On = false
	f.Closed = true
	return nil
}

// Reset clears recorded state.
func (f *FakeIndicator) Reset() {
	f.On = false
	f.History = nil
	f.SetError = nil
	f.Closed = false
}

// NopIndicator is used when no indicator line is configured.
type NopIndicator struct{}

// Set does nothing.
func (NopIndicator) Set(bool) error { return nil }

// Close does nothing.
func (NopIndicator) Close() error { return nil }
