package lock

import (
	"context"
	"sync"

	"attentid/pkg/platform/sentinel"
)

// MemoryLock is the in-process fallback used when Redis is not configured.
// Only meaningful for a single instance; multi-instance deployments rely on
// the store's uniqueness constraint.
type MemoryLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *MemoryLock {
	return &MemoryLock{held: make(map[string]struct{})}
}

func (l *MemoryLock) Acquire(_ context.Context, identityID, placeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(identityID, placeID)
	if _, ok := l.held[k]; ok {
		return sentinel.ErrLockHeld
	}
	l.held[k] = struct{}{}
	return nil
}

func (l *MemoryLock) Release(_ context.Context, identityID, placeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key(identityID, placeID))
}
