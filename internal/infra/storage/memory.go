package storage

import (
	"context"
	"sync"
)

// MemoryFlagStore keeps flag documents in process memory.
// Used by tests and by the CLI when no database is configured.
type MemoryFlagStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryFlagStore creates an empty in-memory flag store.
func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{docs: make(map[string][]byte)}
}

func (s *MemoryFlagStore) Document(_ context.Context, entityID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[entityID]
	if !ok {
		return []byte(emptyDocument), nil
	}
	return append([]byte(nil), doc...), nil
}

func (s *MemoryFlagStore) Get(_ context.Context, entityID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPath(s.docs[entityID], key), nil
}

func (s *MemoryFlagStore) Set(_ context.Context, entityID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := setPath(s.docs[entityID], key, value)
	if err != nil {
		return err
	}
	s.docs[entityID] = doc
	return nil
}

func (s *MemoryFlagStore) Unset(_ context.Context, entityID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := unsetPath(s.docs[entityID], key)
	if err != nil {
		return err
	}
	if doc != nil {
		s.docs[entityID] = doc
	}
	return nil
}
