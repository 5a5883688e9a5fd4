// Keyed read cache the Agora UI renders from.
// Entries are replaced wholesale, never mutated in place.

package cache

import (
	"sort"
	"sync"
)

// Entry is an opaque cached value: the last known server-consistent snapshot for a key.
type Entry = any

type missing struct{}

// Missing is passed to Update transforms when a key holds no entry.
// A transform returning Missing leaves the store untouched, so handlers never
// materialize entries for views the UI never requested.
var Missing Entry = missing{}

// Change tells watchers what happened to a key.
type Change string

const (
	Written Change = "written"
	Evicted Change = "evicted"
)

// Tx is the view of the store handed to a Batch.
// It must not be retained after the batch returns.
type Tx interface {
	Read(key Key) (Entry, bool)
	Write(key Key, entry Entry)
	Update(key Key, fn func(current Entry) Entry) bool
	Evict(key Key) bool
	KeysWithPrefix(prefix Key) []Key
}

// Store is the single shared mutable resource of a session.
type Store interface {
	// Read returns the entry for key, found is false when nothing is cached.
	Read(key Key) (entry Entry, found bool)
	// Write unconditionally replaces the entry for key.
	Write(key Key, entry Entry)
	// Update applies fn to the current entry (or Missing) and stores the result.
	// Returns false when fn returned Missing and nothing was written.
	Update(key Key, fn func(current Entry) Entry) bool
	// Evict removes the entry for key.
	Evict(key Key) bool
	// EvictPrefix removes every entry whose key starts with prefix, returning how many went.
	EvictPrefix(prefix Key) int
	// Batch runs fn as one atomic step; watchers observe its changes only after it returns.
	Batch(fn func(tx Tx))
	// Keys enumerates every cached key in lexical order.
	Keys() []Key
	// KeysWithPrefix enumerates cached keys under prefix in lexical order.
	KeysWithPrefix(prefix Key) []Key
	// Watch registers fn to be told about every committed change. The returned func unregisters it.
	Watch(fn func(key Key, change Change)) (cancel func())
}

type record struct {
	key   Key
	entry Entry
}

type notice struct {
	key    Key
	change Change
}

type store struct {
	mu       sync.RWMutex
	entries  map[string]record
	watchMu  sync.RWMutex
	watchers map[int]func(Key, Change)
	nextID   int
}

// Returns a new, empty, memory-resident Store.
func NewStore() Store {
	return &store{
		entries:  make(map[string]record),
		watchers: make(map[int]func(Key, Change)),
	}
}

func (s *store) Read(key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[key.id()]
	return rec.entry, ok
}

func (s *store) Write(key Key, entry Entry) {
	s.Batch(func(tx Tx) { tx.Write(key, entry) })
}

func (s *store) Update(key Key, fn func(current Entry) Entry) bool {
	var written bool
	s.Batch(func(tx Tx) { written = tx.Update(key, fn) })
	return written
}

func (s *store) Evict(key Key) bool {
	var evicted bool
	s.Batch(func(tx Tx) { evicted = tx.Evict(key) })
	return evicted
}

func (s *store) EvictPrefix(prefix Key) int {
	var count int
	s.Batch(func(tx Tx) {
		for _, key := range tx.KeysWithPrefix(prefix) {
			if tx.Evict(key) {
				count++
			}
		}
	})
	return count
}

// Batch is all or nothing: if fn panics every change it made is undone, no
// watcher hears about it and the panic carries on to the caller.
func (s *store) Batch(fn func(tx Tx)) {
	tx := &batch{s: s, undo: make(map[string]*record)}
	s.mu.Lock()
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
			s.mu.Unlock()
		}
	}()
	fn(tx)
	committed = true
	s.mu.Unlock()
	s.notify(tx.notices)
}

func (s *store) Keys() []Key {
	return s.KeysWithPrefix(nil)
}

func (s *store) KeysWithPrefix(prefix Key) []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keysLocked(prefix)
}

func (s *store) keysLocked(prefix Key) []Key {
	keys := make([]Key, 0)
	for _, rec := range s.entries {
		if rec.key.HasPrefix(prefix) {
			keys = append(keys, rec.key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].id() < keys[j].id() })
	return keys
}

func (s *store) Watch(fn func(key Key, change Change)) func() {
	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.watchMu.Lock()
			delete(s.watchers, id)
			s.watchMu.Unlock()
		})
	}
}

// notify runs outside the data lock so watchers may read the store.
func (s *store) notify(notices []notice) {
	if len(notices) == 0 {
		return
	}
	s.watchMu.RLock()
	watchers := make([]func(Key, Change), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.watchMu.RUnlock()

	for _, n := range notices {
		for _, fn := range watchers {
			fn(n.key, n.change)
		}
	}
}

// batch is the Tx used while the store's write lock is held.
type batch struct {
	s       *store
	notices []notice
	// Entries as they were before the batch first touched them, nil when absent
	undo map[string]*record
}

func (b *batch) Read(key Key) (Entry, bool) {
	rec, ok := b.s.entries[key.id()]
	return rec.entry, ok
}

func (b *batch) Write(key Key, entry Entry) {
	// Keys are copied so callers can't alias the stored tuple
	stored := append(Key(nil), key...)
	b.remember(key.id())
	b.s.entries[key.id()] = record{key: stored, entry: entry}
	b.record(stored, Written)
}

func (b *batch) Update(key Key, fn func(current Entry) Entry) bool {
	current, ok := b.Read(key)
	if !ok {
		current = Missing
	}
	next := fn(current)
	if next == Missing {
		// Nothing to update
		return false
	}
	b.Write(key, next)
	return true
}

func (b *batch) Evict(key Key) bool {
	id := key.id()
	rec, ok := b.s.entries[id]
	if !ok {
		return false
	}
	b.remember(id)
	delete(b.s.entries, id)
	b.record(rec.key, Evicted)
	return true
}

func (b *batch) KeysWithPrefix(prefix Key) []Key {
	return b.s.keysLocked(prefix)
}

// record keeps only the last change per key so a batch reports each key once.
func (b *batch) record(key Key, change Change) {
	for i := range b.notices {
		if b.notices[i].key.Equal(key) {
			b.notices[i].change = change
			return
		}
	}
	b.notices = append(b.notices, notice{key: key, change: change})
}

func (b *batch) remember(id string) {
	if _, seen := b.undo[id]; seen {
		return
	}
	if rec, ok := b.s.entries[id]; ok {
		b.undo[id] = &rec
		return
	}
	b.undo[id] = nil
}

func (b *batch) rollback() {
	for id, rec := range b.undo {
		if rec == nil {
			delete(b.s.entries, id)
			continue
		}
		b.s.entries[id] = *rec
	}
	b.notices = nil
}
