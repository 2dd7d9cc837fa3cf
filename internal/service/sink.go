package service

import (
	"sync/atomic"

	"github.com/sweeney/galvo-ctrl/internal/logic"
)

// ChanSink forwards events to a buffered channel without blocking.
// Events that do not fit are dropped and counted.
type ChanSink struct {
	C       chan logic.Event
	dropped atomic.Int64
}

// NewChanSink returns a sink with a buffer of size n.
func NewChanSink(n int) *ChanSink {
	return &ChanSink{C: make(chan logic.Event, n)}
}

// Emit sends e if there is room.
func (s *ChanSink) Emit(e logic.Event) {
	select {
	case s.C <- e:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many events did not fit in the buffer.
func (s *ChanSink) Dropped() int64 {
	return s.dropped.Load()
}

// Sinks fans one event out to several sinks in order.
type Sinks []EventSink

// Emit forwards e to every sink.
func (s Sinks) Emit(e logic.Event) {
	for _, sink := range s {
		sink.Emit(e)
	}
}
