package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renda-edge/internal/redis"
)

func setupRedsync(t *testing.T) (*RedsyncManager, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client, err := redis.NewClient(&redis.Config{Address: s.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	manager, err := NewRedsyncManager(client)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager, s
}

func TestRedsyncManager_TryAcquire(t *testing.T) {
	manager, s := setupRedsync(t)
	ctx := context.Background()

	t.Run("successful lock acquisition", func(t *testing.T) {
		lock, err := manager.TryAcquire(ctx, "job:purge", 30*time.Second)
		require.NoError(t, err)
		require.NotNil(t, lock)

		assert.Equal(t, "job:purge", lock.Key())
		assert.True(t, lock.IsHeld())
		assert.True(t, s.Exists("lock:job:purge"))

		require.NoError(t, lock.Release(ctx))
		assert.False(t, lock.IsHeld())
		assert.False(t, s.Exists("lock:job:purge"))

		// second release is a no-op
		assert.NoError(t, lock.Release(ctx))
	})

	t.Run("lock contention", func(t *testing.T) {
		lock1, err := manager.TryAcquire(ctx, "job:warm", 30*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		lock2, err := manager.TryAcquire(ctx, "job:warm", 30*time.Second)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLockHeld))
		assert.Nil(t, lock2)
	})

	t.Run("reacquire after release", func(t *testing.T) {
		lock, err := manager.TryAcquire(ctx, "job:again", 30*time.Second)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))

		lock, err = manager.TryAcquire(ctx, "job:again", 30*time.Second)
		require.NoError(t, err)
		assert.NoError(t, lock.Release(ctx))
	})
}

func TestRedsyncManager_Close(t *testing.T) {
	manager, s := setupRedsync(t)

	lock, err := manager.TryAcquire(context.Background(), "job:close", time.Minute)
	require.NoError(t, err)

	require.NoError(t, manager.Close())
	assert.False(t, lock.IsHeld())
	assert.False(t, s.Exists("lock:job:close"))
}

func TestRedsyncManager_NilRedisClient(t *testing.T) {
	manager, err := NewRedsyncManager(nil)
	assert.Error(t, err)
	assert.Nil(t, manager)
	assert.Contains(t, err.Error(), "redis client is required")
}

func TestNewManager(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)
	_, ok := m.(*LocalManager)
	assert.True(t, ok)

	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	client, err := redis.NewClient(&redis.Config{Address: s.Addr()})
	require.NoError(t, err)
	defer client.Close()

	m, err = NewManager(client)
	require.NoError(t, err)
	_, ok = m.(*RedsyncManager)
	assert.True(t, ok)
}

func TestLocalManager(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewLocalManager()
	m.now = func() time.Time { return now }

	lock, err := m.TryAcquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, lock.IsHeld())

	_, err = m.TryAcquire(ctx, "job", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	t.Run("expired lease can be taken over", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		assert.False(t, lock.IsHeld())

		other, err := m.TryAcquire(ctx, "job", time.Minute)
		require.NoError(t, err)

		// the stale holder must not free the new lease
		require.NoError(t, lock.Release(ctx))
		assert.True(t, other.IsHeld())
		_, err = m.TryAcquire(ctx, "job", time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)

		require.NoError(t, other.Release(ctx))
		again, err := m.TryAcquire(ctx, "job", time.Minute)
		require.NoError(t, err)
		assert.NoError(t, again.Release(ctx))
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := m.TryAcquire(cctx, "other", time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
