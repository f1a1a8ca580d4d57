package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"attentid/internal/event"
)

// MemoryStore is an in-memory event store for tests and local development.
// Matching semantics mirror the PostgreSQL LIKE/BETWEEN queries.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	events []event.Event

	// Clock lets tests pin received_at; defaults to time.Now.
	Clock func() time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{Clock: time.Now}
}

func (s *MemoryStore) Append(_ context.Context, e event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = s.Clock()
	}
	s.events = append(s.events, e)
	return e, nil
}

func (s *MemoryStore) QueryByTopicSubstrings(_ context.Context, substrings []string, from, to *time.Time) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.Event
	for _, e := range s.events {
		if !containsAll(e.Topic, substrings) {
			continue
		}
		if !inRange(e.ReceivedAt, from, to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) QueryByTopicSubstring(ctx context.Context, substring string, from, to *time.Time) ([]event.Event, error) {
	return s.QueryByTopicSubstrings(ctx, []string{substring}, from, to)
}

func containsAll(topic string, substrings []string) bool {
	for _, sub := range substrings {
		if !strings.Contains(topic, sub) {
			return false
		}
	}
	return true
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}
