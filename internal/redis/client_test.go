package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewClient(&Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewClient(nil)
		assert.Error(t, err)
	})

	t.Run("applies pool default", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &Config{Address: mr.Addr()}
		client, err := NewClient(cfg)
		require.NoError(t, err)
		defer client.Close()
		assert.Equal(t, 10, cfg.PoolSize)
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := NewClient(&Config{Address: "127.0.0.1:1"})
		assert.Error(t, err)
	})
}

func TestHealth(t *testing.T) {
	client, mr := setupTestRedis(t)
	assert.NoError(t, client.Health(context.Background()))

	mr.Close()
	assert.Error(t, client.Health(context.Background()))
}

func TestPublishSubscribe(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	ps, err := client.Subscribe(ctx, "cache:invalidate")
	require.NoError(t, err)
	defer ps.Close()

	require.NoError(t, client.Publish(ctx, "cache:invalidate", map[string]string{"tag": "products"}))

	select {
	case msg := <-ps.Channel():
		assert.Equal(t, "cache:invalidate", msg.Channel)
		assert.JSONEq(t, `{"tag":"products"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestRaw(t *testing.T) {
	client, mr := setupTestRedis(t)
	require.NoError(t, client.Raw().Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestGetSet(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := client.Get(ctx, "missing")
	assert.Equal(t, Nil, err)

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))
	v, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}
