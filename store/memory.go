package store

import (
	"context"
	"maps"
	"sync"
)

// TypeInMemory is the TypeDescription of MemoryStore.
const TypeInMemory = "inmemory"

// MemoryStore keeps values in process memory. Nothing survives a restart.
type MemoryStore struct {
	name string

	mu    sync.RWMutex
	items map[string]Value
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:  name,
		items: make(map[string]Value),
	}
}

// BuildMemory is a BuildFunc producing MemoryStores.
func BuildMemory(_ context.Context, name string) (Store, error) {
	return NewMemoryStore(name), nil
}

func (s *MemoryStore) Name() string            { return s.name }
func (s *MemoryStore) TypeDescription() string { return TypeInMemory }

func (s *MemoryStore) Save(_ context.Context, key string, value Value) error {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) (Value, bool, error) {
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadAll(_ context.Context) (map[string]Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.items), nil
}

func (s *MemoryStore) HasItemWithKey(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, ok := s.items[key]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}
