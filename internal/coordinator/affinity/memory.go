package affinity

import (
	"context"
	"sync"
)

// MemoryStore implements Store using an in-process map. Entries live for the
// process lifetime or until explicitly cleared.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory affinity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get implements Store.Get
func (s *MemoryStore) Get(_ context.Context, conversationID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[conversationID], nil
}

// Set implements Store.Set
func (s *MemoryStore) Set(_ context.Context, conversationID, backendName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[conversationID] = backendName
	return nil
}

// Clear implements Store.Clear
func (s *MemoryStore) Clear(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conversationID)
	return nil
}

// Close implements Store.Close
func (s *MemoryStore) Close() error {
	return nil
}
