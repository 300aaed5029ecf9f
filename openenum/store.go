package openenum

import (
	"strconv"
	"sync"

	"github.com/wippyai/stable-abi/errors"
)

// Handle is an opaque reference to a value in a Store.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Store hands out handles for erased values so they can cross a module
// boundary as plain integers. It is safe for concurrent use.
type Store struct {
	entries []*Value
	free    []Handle
	mu      sync.RWMutex
	closed  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make([]*Value, 0, 64),
		free:    make([]Handle, 0, 16),
	}
}

// Put stores a value and returns its handle.
func (s *Store) Put(v *Value) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.Unsupported(errors.PhaseAccess, "store closed")
	}

	if len(s.free) > 0 {
		h := s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
		s.entries[h-1] = v
		return h, nil
	}

	s.entries = append(s.entries, v)
	return Handle(len(s.entries)), nil
}

// Get returns the value behind a handle.
func (s *Store) Get(h Handle) (*Value, bool) {
	if h == 0 {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if int(h) > len(s.entries) {
		return nil, false
	}
	v := s.entries[h-1]
	return v, v != nil
}

// Take removes a value from the store without dropping it.
func (s *Store) Take(h Handle) (*Value, bool) {
	if h == 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if int(h) > len(s.entries) {
		return nil, false
	}
	v := s.entries[h-1]
	if v == nil {
		return nil, false
	}
	s.entries[h-1] = nil
	s.free = append(s.free, h)
	return v, true
}

// Drop removes a value and releases it through its table.
func (s *Store) Drop(h Handle) error {
	v, ok := s.Take(h)
	if !ok {
		return errors.NotFound(errors.PhaseAccess, "handle", strconv.FormatUint(uint64(h), 10))
	}
	return v.Drop()
}

// Len returns the number of live values.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) - len(s.free)
}

// Close drops every live value. Values whose table has no drop are
// discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	entries := s.entries
	s.entries, s.free = nil, nil
	s.mu.Unlock()

	for _, v := range entries {
		if v != nil && v.table.Drop != nil {
			_ = v.Drop()
		}
	}
	return nil
}
