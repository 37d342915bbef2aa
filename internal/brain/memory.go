package brain

import (
	"context"
	"sync"
)

// MemoryStore keeps the last saved snapshot in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]User
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: map[string]User{}}
}

func (s *MemoryStore) Load(_ context.Context) (map[string]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]User, len(s.users))
	for id, u := range s.users {
		out[id] = u.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, users map[string]User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]User, len(users))
	for id, u := range users {
		s.users[id] = u.Clone()
	}
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Close() error { return nil }
