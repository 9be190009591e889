// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps containers in process memory.
type MemoryStorage struct {
	mu         sync.RWMutex
	containers map[string]*memoryContainer
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{containers: make(map[string]*memoryContainer)}
}

func (s *MemoryStorage) Open(ctx context.Context, name string) (Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[name]
	if !ok {
		c = &memoryContainer{entries: make(map[string]*Response)}
		s.containers[name] = c
	}
	return c, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.containers, name)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.containers))
	for name := range s.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type memoryContainer struct {
	mu      sync.RWMutex
	entries map[string]*Response
}

func (c *memoryContainer) Match(ctx context.Context, key string) (*Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	resp, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return resp, nil
}

func (c *memoryContainer) PutAll(ctx context.Context, entries map[string]*Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, resp := range entries {
		c.entries[key] = resp
	}
	return nil
}

func (c *memoryContainer) Keys(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
