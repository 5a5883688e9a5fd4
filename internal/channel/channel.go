// Event channel contract of Agora: a duplex, named-event connection to the forum server
// that joins and leaves rooms, dispatches inbound events to listeners and emits outbound events.

package channel

import (
	"context"
	"encoding/json"
	"sync"
)

// HandlerFunc consumes the raw JSON payload of one inbound event.
type HandlerFunc func(ctx context.Context, payload json.RawMessage)

// Listener is one registration of a handler for an event name.
// The pointer is the identity Off removes, so a listener registered on mount
// and removed on teardown can never be invoked twice after a remount.
type Listener struct {
	event string
	fn    HandlerFunc
}

// NewListener binds fn to event.
func NewListener(event string, fn HandlerFunc) *Listener {
	return &Listener{event: event, fn: fn}
}

// Event returns the event name the listener is bound to.
func (l *Listener) Event() string {
	return l.event
}

// Handle invokes the listener's handler.
func (l *Listener) Handle(ctx context.Context, payload json.RawMessage) {
	l.fn(ctx, payload)
}

// Channel is what the room manager, the realtime handlers and the emit API depend on.
type Channel interface {
	// Join asks the server to deliver events scoped to room. Joining twice is a no-op.
	Join(room string)
	// Leave stops delivery for room. Leaving a room that was never joined is a no-op.
	Leave(room string)
	// On registers a listener.
	On(l *Listener)
	// Off removes exactly that listener.
	Off(l *Listener)
	// Emit sends an event best-effort. It never blocks on a missing connection and never queues.
	Emit(event string, payload any)
}

// Subscription groups listeners acquired together and released together.
type Subscription struct {
	ch        Channel
	listeners []*Listener
	once      sync.Once

	mu      sync.Mutex
	closers []func()
	closed  bool
}

// Subscribe registers every listener on ch and returns the scope owning them.
func Subscribe(ch Channel, listeners ...*Listener) *Subscription {
	for _, l := range listeners {
		ch.On(l)
	}
	return &Subscription{ch: ch, listeners: listeners}
}

// Events lists the event names covered by the subscription.
func (s *Subscription) Events() []string {
	events := make([]string, 0, len(s.listeners))
	for _, l := range s.listeners {
		events = append(events, l.event)
	}
	return events
}

// OnClose ties fn to the subscription's lifetime: it runs once, after the listeners
// are removed. On a closed subscription fn runs right away.
func (s *Subscription) OnClose(fn func()) {
	s.mu.Lock()
	if !s.closed {
		s.closers = append(s.closers, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// Close removes every listener of the subscription, then runs the OnClose hooks.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		for _, l := range s.listeners {
			s.ch.Off(l)
		}
		s.mu.Lock()
		s.closed = true
		closers := s.closers
		s.closers = nil
		s.mu.Unlock()
		for _, fn := range closers {
			fn()
		}
	})
}
