package securestore

import (
	"sync"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

// MemoryStore keeps values in process memory. It backs tests and serves as
// the overlay when durable storage is unavailable.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Load returns a copy of the value stored under key.
func (s *MemoryStore) Load(key string) ([]byte, error) {
	if err := validateStoreKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, moorerr.ErrStoreKeyNotFound
	}

	return append([]byte(nil), value...), nil
}

// Save stores a copy of data under key.
func (s *MemoryStore) Save(key string, data []byte) error {
	if err := validateStoreKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), data...)
	return nil
}

// Delete removes the value stored under key.
func (s *MemoryStore) Delete(key string) error {
	if err := validateStoreKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
