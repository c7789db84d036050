// Package store implements the DHT node's local value store: a mapping from
// 160-bit keys to opaque byte strings. It holds exactly what STORE requests
// put into it and performs no validation, expiry, or republishing — those
// are host-level concerns the core DHT does not implement (see spec.md §1).
package store

import (
	"sync"

	"github.com/lithp/kademlia/id"
)

// Store is a concurrency-safe key/value map keyed by 160-bit identifier.
// The verb-dispatch layer is the exclusive owner of a Store; the lookup
// engine only ever observes it indirectly, through a FIND_VALUE RPC.
type Store struct {
	mu     sync.RWMutex
	values map[id.ID][]byte
}

// New returns an empty value store.
func New() *Store {
	return &Store{values: make(map[id.ID][]byte)}
}

// Put inserts or overwrites the value stored under key. The value is copied
// so the caller may reuse or mutate the slice it passed in.
func (s *Store) Put(key id.ID, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = cp
}

// Get returns the value stored under key, and whether it was present.
func (s *Store) Get(key id.ID) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}

// Len returns the number of keys currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
