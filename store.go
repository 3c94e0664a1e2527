package isorender

import (
	"sync"
)

// Callback receives variable change notifications. The name is included so a
// single callback can serve a UI location that remaps between variables.
type Callback func(name string, value any)

// Store is a registry of named mutable values with synchronous pub/sub
// fan-out. The server creates one per request; the client keeps one for the
// process lifetime. All mutation goes through Set (or a Setter closure), never
// through direct object mutation, so notification stays consistent.
type Store struct {
	mu      sync.Mutex
	entries map[string]*varEntry
	nextSub uint64
}

type varEntry struct {
	value   any
	private bool
	setter  func(any)
	subs    map[uint64]Callback
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: map[string]*varEntry{}}
}

// Get returns the current value of name, or def if the name is unseen.
// First sight creates the entry so its setter is immediately available. The
// default never applies to an entry that already exists: a variable set to
// nil stays nil, since nil is how pending state is signaled.
func (s *Store) Get(name string, def any) any {
	if name == "" {
		return def
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		e = s.entry(name)
		e.value = def
	}
	return e.value
}

// Set replaces the value of name and synchronously notifies every current
// subscriber. Notification order is unspecified.
func (s *Store) Set(name string, v any) {
	if name == "" {
		return
	}
	s.mu.Lock()
	e := s.entry(name)
	e.value = v
	subs := make([]Callback, 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(name, v)
	}
}

// Setter returns the stable per-name setter. Repeated calls for the same name
// observe the same underlying function for the life of the store.
func (s *Store) Setter(name string) func(any) {
	if name == "" {
		return func(any) {}
	}
	s.mu.Lock()
	e := s.entry(name)
	s.mu.Unlock()
	return e.setter
}

// Seed creates or overwrites an entry without notifying anyone. Used to
// populate a fresh client store from a snapshot before the first render.
func (s *Store) Seed(name string, v any) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(name).value = v
}

// MarkPrivate tags an entry as internal bookkeeping: it is excluded from
// Export and therefore never reaches the client.
func (s *Store) MarkPrivate(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(name).private = true
}

// Delete drops an entry entirely, subscribers included. Intended for private
// bookkeeping entries; public variables should be Set to nil instead.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
}

// Export returns a copy of all non-private entries for snapshot transfer.
func (s *Store) Export() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.entries))
	for name, e := range s.entries {
		if e.private {
			continue
		}
		out[name] = e.value
	}
	return out
}

// Subscribe registers fn for changes to name and returns an owned handle.
// Closing the handle always removes the registration, even on early-return
// teardown paths.
func (s *Store) Subscribe(name string, fn Callback) *Subscription {
	sub := &Subscription{store: s}
	if name == "" || fn == nil {
		sub.closed = true
		return sub
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	sub.id = s.nextSub
	sub.name = name
	sub.fn = fn
	s.entry(name).subs[sub.id] = fn
	return sub
}

// entry returns the record for name, creating it as needed. Caller holds mu.
func (s *Store) entry(name string) *varEntry {
	e, ok := s.entries[name]
	if !ok {
		e = &varEntry{subs: map[uint64]Callback{}}
		e.setter = func(v any) { s.Set(name, v) }
		s.entries[name] = e
	}
	return e
}

// Subscription is an owned handle for one (name, callback) registration.
type Subscription struct {
	store *Store

	mu     sync.Mutex
	name   string
	id     uint64
	fn     Callback
	closed bool
}

// Close removes the registration. Safe to call more than once.
func (sub *Subscription) Close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	s := sub.store
	s.mu.Lock()
	if e, ok := s.entries[sub.name]; ok {
		delete(e.subs, sub.id)
	}
	s.mu.Unlock()
}

// Rebind atomically moves the registration to a different variable name, so a
// long-lived UI location that remaps never receives a stale notification from
// the old name between teardown and re-registration.
func (sub *Subscription) Rebind(name string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed || name == "" || name == sub.name {
		return
	}
	s := sub.store
	s.mu.Lock()
	if e, ok := s.entries[sub.name]; ok {
		delete(e.subs, sub.id)
	}
	s.entry(name).subs[sub.id] = sub.fn
	s.mu.Unlock()
	sub.name = name
}
