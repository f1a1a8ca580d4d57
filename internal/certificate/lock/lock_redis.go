// Package lock provides the per-(identity, place) mutual exclusion used by the
// automatic issuance path. The lock is advisory: the hour-bucket uniqueness
// constraint in the certificate store is the hard guarantee, the lock just
// keeps concurrent beacon bursts from doing redundant matcher work.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"attentid/pkg/platform/sentinel"
)

// defaultTTL bounds how long an abandoned lock can block a key if the holder
// dies before releasing.
const defaultTTL = 30 * time.Second

// RedisLock implements the issuance lock with SET NX PX.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client) *RedisLock {
	return &RedisLock{client: client, ttl: defaultTTL}
}

// Acquire takes the lock for the pair or returns sentinel.ErrLockHeld.
func (l *RedisLock) Acquire(ctx context.Context, identityID, placeID string) error {
	ok, err := l.client.SetNX(ctx, key(identityID, placeID), "1", l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire issuance lock: %w", err)
	}
	if !ok {
		return sentinel.ErrLockHeld
	}
	return nil
}

// Release drops the lock. Best effort; expiry cleans up after failures.
func (l *RedisLock) Release(ctx context.Context, identityID, placeID string) {
	l.client.Del(ctx, key(identityID, placeID))
}

func key(identityID, placeID string) string {
	return "attentid:issue-lock:" + identityID + ":" + placeID
}
