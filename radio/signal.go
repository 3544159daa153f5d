package radio

import "sync/atomic"

// ReadySignal is raised from interrupt context when the radio asserts its
// packet interrupt and cleared by the controller after draining. Repeated
// raises collapse into one pending notification.
//
// Raise is ISR-safe: an atomic store and a non-blocking send.
type ReadySignal struct {
	flag atomic.Bool
	wake chan struct{}
}

func NewReadySignal() *ReadySignal {
	return &ReadySignal{wake: make(chan struct{}, 1)}
}

// Raise marks a packet event pending.
func (s *ReadySignal) Raise() {
	s.flag.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether an event is waiting to be drained.
func (s *ReadySignal) Pending() bool { return s.flag.Load() }

// Clear drops any pending event.
func (s *ReadySignal) Clear() { s.flag.Store(false) }

// Wake fires after Raise so a loop can block instead of polling. A receive
// from Wake is a hint only; Pending is authoritative.
func (s *ReadySignal) Wake() <-chan struct{} { return s.wake }
