//go:build integration

package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attentid/pkg/platform/sentinel"
	"attentid/pkg/testutil/containers"
)

func TestRedisLock(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	l := NewRedis(rc.Client)

	require.NoError(t, l.Acquire(ctx, "us-1", "place-a"))

	t.Run("second acquire on same pair is refused", func(t *testing.T) {
		assert.ErrorIs(t, l.Acquire(ctx, "us-1", "place-a"), sentinel.ErrLockHeld)
	})

	t.Run("other pairs are independent", func(t *testing.T) {
		require.NoError(t, l.Acquire(ctx, "us-1", "place-b"))
		require.NoError(t, l.Acquire(ctx, "us-2", "place-a"))
	})

	t.Run("release frees the pair", func(t *testing.T) {
		l.Release(ctx, "us-1", "place-a")
		assert.NoError(t, l.Acquire(ctx, "us-1", "place-a"))
	})
}
