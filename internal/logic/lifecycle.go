package logic

import (
	"errors"
	"fmt"
)

// ErrAdvertise marks a failed advertising re-request. The lifecycle cannot
// recover from it; callers treat it as a platform fault.
var ErrAdvertise = errors.New("advertise")

// Indicator is the binary "peer connected" output.
type Indicator interface {
	Set(on bool) error
}

// Advertiser restarts advertising after a peer leaves.
type Advertiser interface {
	Advertise() error
}

// Lifecycle tracks the single connection slot.
// Transitions are driven only by stack connect/disconnect notifications.
type Lifecycle struct {
	state      ConnState
	indicator  Indicator
	advertiser Advertiser
}

// NewLifecycle returns a lifecycle in StateIdle.
func NewLifecycle(indicator Indicator, advertiser Advertiser) *Lifecycle {
	return &Lifecycle{
		state:      StateIdle,
		indicator:  indicator,
		advertiser: advertiser,
	}
}

// State returns the current connection state.
func (l *Lifecycle) State() ConnState {
	return l.state
}

// OnConnect moves Idle to Connected and turns the indicator on.
// Advertising is left to the stack, which stops it while a peer is attached.
// changed is false when already connected; nothing happens then.
// A returned error is an indicator failure; the transition still happened.
func (l *Lifecycle) OnConnect() (changed bool, err error) {
	if l.state == StateConnected {
		return false, nil
	}
	l.state = StateConnected
	if err := l.indicator.Set(true); err != nil {
		return true, fmt.Errorf("indicator on: %w", err)
	}
	return true, nil
}

// OnDisconnect moves Connected to Idle, turns the indicator off and asks for
// advertising exactly once. The reason code is not used for branching.
// changed is false when already idle; nothing happens then.
// The transition always completes. Errors from the indicator and the
// advertiser are joined; the latter wraps ErrAdvertise.
func (l *Lifecycle) OnDisconnect(reason uint8) (changed bool, err error) {
	if l.state == StateIdle {
		return false, nil
	}
	l.state = StateIdle

	var errs []error
	if err := l.indicator.Set(false); err != nil {
		errs = append(errs, fmt.Errorf("indicator off: %w", err))
	}
	if err := l.advertiser.Advertise(); err != nil {
		errs = append(errs, fmt.Errorf("%w (reason 0x%02x): %w", ErrAdvertise, reason, err))
	}
	return true, errors.Join(errs...)
}
