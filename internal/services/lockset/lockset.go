// Package lockset provides mutual exclusion keyed by name.
//
// Pairing and match transitions touch more than one event row, so they hold
// the locks of every participant involved for the duration of the change.
package lockset

import (
	"sort"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Set hands out one mutex per key, created on demand and dropped when unused
type Set struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Set
func New() *Set {
	return &Set{entries: make(map[string]*entry)}
}

// Lock acquires the locks for all keys and returns a function releasing them.
// Keys are taken in sorted order so overlapping callers cannot deadlock.
func (s *Set) Lock(keys ...string) (unlock func()) {
	keys = normalize(keys)

	held := make([]*entry, 0, len(keys))
	for _, key := range keys {
		e := s.acquire(key)
		e.mu.Lock()
		held = append(held, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				s.release(keys[i])
			}
		})
	}
}

// Len returns the number of keys currently locked or waited on
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Set) acquire(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.refs++
	return e
}

func (s *Set) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
	}
}

// normalize sorts and de-duplicates keys, dropping empty ones
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)

	deduped := out[:0]
	for i, k := range out {
		if i == 0 || k != out[i-1] {
			deduped = append(deduped, k)
		}
	}
	return deduped
}
