// Current screen of the Agora session and programmatic navigation.

package navigation

import (
	"Agora/pkg/log"
	"sync"
)

// Tracker holds the path of the screen currently shown.
type Tracker struct {
	logger log.Logger

	mu       sync.RWMutex
	current  string
	watchers map[uint64]func(path string)
	nextID   uint64
}

// Returns a Tracker starting at path.
func NewTracker(path string, logger log.Logger) *Tracker {
	return &Tracker{
		current:  path,
		logger:   logger,
		watchers: make(map[uint64]func(string)),
	}
}

// Current returns the path of the screen currently shown.
func (t *Tracker) Current() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Navigate moves to path and reports whether the path changed.
// Navigating to the current path does nothing.
func (t *Tracker) Navigate(path string) bool {
	t.mu.Lock()
	if t.current == path {
		t.mu.Unlock()
		return false
	}
	from := t.current
	t.current = path
	fns := make([]func(string), 0, len(t.watchers))
	for _, fn := range t.watchers {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	t.logger.Debug().Str("from", from).Str("to", path).Msg("Navigated")
	for _, fn := range fns {
		fn(path)
	}
	return true
}

// Watch calls fn with every new path until cancel is called.
func (t *Tracker) Watch(fn func(path string)) (cancel func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.watchers, id)
		t.mu.Unlock()
	}
}
