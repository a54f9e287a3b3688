package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session states.
const (
	StateConnecting int32 = iota
	StateOpen
	StateClosed
)

// Session is a live addressable endpoint for pushing events to one
// connected client. The connection handle (ID) is unique system-wide.
type Session struct {
	ID          string
	ConnectedAt time.Time

	// outbound queue drained by the socket write loop
	Events chan *Event
	// closed when the session is torn down
	Kill chan struct{}

	state     atomic.Int32
	closeOnce sync.Once
}

// NewSession creates a session in the CONNECTING state.
func NewSession() *Session {
	return &Session{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now(),
		Events:      make(chan *Event, 64),
		Kill:        make(chan struct{}),
	}
}

// Open moves the session to OPEN. No-op unless currently CONNECTING.
func (s *Session) Open() {
	s.state.CompareAndSwap(StateConnecting, StateOpen)
}

// Close moves the session to CLOSED (terminal) and releases waiters.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(StateClosed)
		close(s.Kill)
	})
}

// State returns the current lifecycle state.
func (s *Session) State() int32 {
	return s.state.Load()
}

// send queues an event without blocking. A full queue or closed session
// drops the event; the session is either stale or too slow, and neither
// is actionable by the caller.
func (s *Session) send(ev *Event) bool {
	if s.State() != StateOpen {
		return false
	}
	select {
	case s.Events <- ev:
		return true
	default:
		return false
	}
}
