package store

import (
	"context"
	"sync"

	"attentid/internal/identity"
	"attentid/pkg/platform/sentinel"
)

// MemoryStore is an in-memory user store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]identity.User
}

func NewMemory() *MemoryStore {
	return &MemoryStore{users: make(map[string]identity.User)}
}

func (s *MemoryStore) Save(_ context.Context, user identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, userID string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return identity.User{}, sentinel.ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return identity.User{}, sentinel.ErrNotFound
}
