// Bounded, self-expiring feeds backing the ephemeral signals of Agora.

package signal

import (
	"sync"
	"time"
)

// Expiry decides how entries leave a Feed besides being pushed out by newer ones.
type Expiry int

const (
	// Every entry gets its own timer started at insertion.
	ExpirePerItem Expiry = iota
	// One ticker drops the oldest entry every TTL.
	ExpireOldest
)

// FeedOptions configures a Feed.
type FeedOptions struct {
	Max    int
	TTL    time.Duration
	Expiry Expiry
}

type feedItem[T any] struct {
	key   string
	gen   uint64
	value T
	timer *time.Timer
}

// Feed keeps at most Max values, newest first. Pushing a key already present
// replaces that entry and restarts only its timer.
type Feed[T any] struct {
	opts     FeedOptions
	onChange func()

	mu     sync.Mutex
	items  []*feedItem[T]
	gen    uint64
	closed bool

	stop chan struct{}
	done chan struct{}
}

// Returns a new Feed. onChange runs outside the lock after every mutation.
func NewFeed[T any](opts FeedOptions, onChange func()) *Feed[T] {
	if opts.Max <= 0 {
		opts.Max = 1
	}
	if onChange == nil {
		onChange = func() {}
	}
	f := &Feed[T]{opts: opts, onChange: onChange}
	if opts.Expiry == ExpireOldest && opts.TTL > 0 {
		f.stop = make(chan struct{})
		f.done = make(chan struct{})
		go f.dropOldest()
	}
	return f
}

// Push inserts value at the head under key.
func (f *Feed[T]) Push(key string, value T) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.gen++
	item := &feedItem[T]{key: key, gen: f.gen, value: value}

	kept := make([]*feedItem[T], 0, len(f.items)+1)
	kept = append(kept, item)
	for _, old := range f.items {
		if old.key == key {
			stopTimer(old)
			continue
		}
		kept = append(kept, old)
	}
	for len(kept) > f.opts.Max {
		stopTimer(kept[len(kept)-1])
		kept = kept[:len(kept)-1]
	}
	f.items = kept

	if f.opts.Expiry == ExpirePerItem && f.opts.TTL > 0 {
		gen := item.gen
		item.timer = time.AfterFunc(f.opts.TTL, func() { f.expire(key, gen) })
	}
	f.mu.Unlock()
	f.onChange()
}

// expire removes the entry for key only if it is still the one the timer was started for.
func (f *Feed[T]) expire(key string, gen uint64) {
	f.mu.Lock()
	removed := false
	for i, item := range f.items {
		if item.key == key && item.gen == gen {
			f.items = append(f.items[:i:i], f.items[i+1:]...)
			removed = true
			break
		}
	}
	f.mu.Unlock()
	if removed {
		f.onChange()
	}
}

func (f *Feed[T]) dropOldest() {
	defer close(f.done)
	ticker := time.NewTicker(f.opts.TTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.mu.Lock()
			dropped := len(f.items) > 0
			if dropped {
				f.items = f.items[:len(f.items)-1]
			}
			f.mu.Unlock()
			if dropped {
				f.onChange()
			}
		case <-f.stop:
			return
		}
	}
}

// Items returns the current values, newest first.
func (f *Feed[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := make([]T, len(f.items))
	for i, item := range f.items {
		values[i] = item.value
	}
	return values
}

func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Close stops every timer and the ticker. Entries are discarded.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	for _, item := range f.items {
		stopTimer(item)
	}
	f.items = nil
	f.mu.Unlock()

	if f.stop != nil {
		close(f.stop)
		<-f.done
	}
}

func stopTimer[T any](item *feedItem[T]) {
	if item.timer != nil {
		item.timer.Stop()
	}
}

// Slot holds a single value that clears itself TTL after being set.
type Slot[T any] struct {
	ttl      time.Duration
	onChange func()

	mu     sync.Mutex
	value  T
	set    bool
	gen    uint64
	timer  *time.Timer
	closed bool
}

// Returns an empty Slot.
func NewSlot[T any](ttl time.Duration, onChange func()) *Slot[T] {
	if onChange == nil {
		onChange = func() {}
	}
	return &Slot[T]{ttl: ttl, onChange: onChange}
}

// Set replaces the value and restarts the clear timer.
func (s *Slot[T]) Set(value T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	s.value, s.set = value, true
	if s.ttl > 0 {
		gen := s.gen
		s.timer = time.AfterFunc(s.ttl, func() { s.clear(gen) })
	}
	s.mu.Unlock()
	s.onChange()
}

func (s *Slot[T]) clear(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || !s.set {
		// Replaced since this timer started
		s.mu.Unlock()
		return
	}
	var zero T
	s.value, s.set = zero, false
	s.timer = nil
	s.mu.Unlock()
	s.onChange()
}

// Get returns the value and whether one is set.
func (s *Slot[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}

func (s *Slot[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	var zero T
	s.value, s.set = zero, false
}
