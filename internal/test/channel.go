// In-memory event channel used by Agora tests.

package test

import (
	"Agora/internal/channel"
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// Call is one outbound action recorded by FakeChannel.
type Call struct {
	Event   string
	Payload any
}

// FakeChannel implements channel.Channel without a network.
// Deliver runs listeners on the caller's goroutine, like the dispatch loop does.
type FakeChannel struct {
	mu        sync.Mutex
	calls     []Call
	rooms     map[string]struct{}
	listeners map[string][]*channel.Listener
	offline   bool
}

func NewFakeChannel() *FakeChannel {
	return &FakeChannel{
		rooms:     make(map[string]struct{}),
		listeners: make(map[string][]*channel.Listener),
	}
}

// SetOffline makes Emit drop everything, like a disconnected client.
func (f *FakeChannel) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func (f *FakeChannel) Join(room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room]; ok {
		return
	}
	f.rooms[room] = struct{}{}
	f.calls = append(f.calls, Call{Event: "join-room", Payload: room})
}

func (f *FakeChannel) Leave(room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room]; !ok {
		return
	}
	delete(f.rooms, room)
	f.calls = append(f.calls, Call{Event: "leave-room", Payload: room})
}

func (f *FakeChannel) On(l *channel.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slices.Contains(f.listeners[l.Event()], l) {
		return
	}
	f.listeners[l.Event()] = append(f.listeners[l.Event()], l)
}

func (f *FakeChannel) Off(l *channel.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	listeners := f.listeners[l.Event()]
	if i := slices.Index(listeners, l); i >= 0 {
		f.listeners[l.Event()] = slices.Delete(slices.Clone(listeners), i, i+1)
	}
}

func (f *FakeChannel) Emit(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return
	}
	f.calls = append(f.calls, Call{Event: event, Payload: payload})
}

// Deliver hands an inbound event to every registered listener of event.
func (f *FakeChannel) Deliver(ctx context.Context, event string, payload any) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case string:
		raw = json.RawMessage(p)
	default:
		raw, _ = json.Marshal(p)
	}
	f.mu.Lock()
	listeners := slices.Clone(f.listeners[event])
	f.mu.Unlock()
	for _, l := range listeners {
		l.Handle(ctx, raw)
	}
}

// Calls returns every recorded outbound action in order.
func (f *FakeChannel) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsOf returns the recorded actions named event.
func (f *FakeChannel) CallsOf(event string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

// Listeners returns how many listeners are registered for event.
func (f *FakeChannel) Listeners(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[event])
}

// Connected is false while the channel is offline.
func (f *FakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.offline
}

// Rooms lists joined rooms in order.
func (f *FakeChannel) Rooms() []string {
	f.mu.Lock()
	rooms := make([]string, 0, len(f.rooms))
	for room := range f.rooms {
		rooms = append(rooms, room)
	}
	f.mu.Unlock()
	slices.Sort(rooms)
	return rooms
}

// Reset forgets recorded calls.
func (f *FakeChannel) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

var _ channel.Channel = (*FakeChannel)(nil)
