package replylog

import (
	"context"
	"sync"
)

// MemoryStore keeps slots in process memory. Used in tests and single-node
// deployments that do not need the pending reply to survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]Entry)}
}

func (s *MemoryStore) Write(ctx context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.IsZero() {
		delete(s.slots, key)
		return nil
	}
	s.slots[key] = entry
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.slots[key]
	if !ok {
		return Entry{}, ErrEmpty
	}
	return entry, nil
}

func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, key)
	return nil
}
