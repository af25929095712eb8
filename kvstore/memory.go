package kvstore

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// NewMemoryStore returns an ephemeral in-memory store.
func NewMemoryStore() *memoryStore {
	return &memoryStore{
		items: map[string]Item{},
	}
}

// Assert Store implementation
var _ Store = &memoryStore{}

type memoryStore struct {
	mu    sync.Mutex
	items map[string]Item
}

func (s *memoryStore) Get(key string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (s *memoryStore) Set(key string, value string) (*Item, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.items[key]
	item.Key = key
	item.Value = value
	item.Version++
	item.Updated = time.Now()
	s.items[key] = item
	return &item, nil
}

func (s *memoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return ErrNotFound
	}
	delete(s.items, key)
	return nil
}

func (s *memoryStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := []string{}
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memoryStore) Close() error {
	return nil
}
