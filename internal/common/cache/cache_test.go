package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "renda-edge/internal/redis"
)

func newRedisClient(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisclient.NewClient(&redisclient.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// storeContract runs the behavior every backend must share.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, PathKey("/catalog"), []byte(`{"page":"catalog"}`), 0, PathTag("/catalog"), "products"))
	require.NoError(t, store.Set(ctx, PathKey("/catalog?page=2"), []byte(`{"page":2}`), 0, PathTag("/catalog"), "products"))
	require.NoError(t, store.Set(ctx, PathKey("/news"), []byte(`{"page":"news"}`), 0, PathTag("/news"), "news"))
	require.NoError(t, store.Set(ctx, PathKey("/"), []byte(`{"page":"home"}`), 0, PathTag("/"), "products", "news", "settings"))

	got, ok := store.Get(ctx, PathKey("/catalog"))
	require.True(t, ok)
	assert.JSONEq(t, `{"page":"catalog"}`, string(got))

	t.Run("path invalidation drops every query variant", func(t *testing.T) {
		require.NoError(t, store.InvalidatePath(ctx, "/catalog/"))
		_, ok := store.Get(ctx, PathKey("/catalog"))
		assert.False(t, ok)
		_, ok = store.Get(ctx, PathKey("/catalog?page=2"))
		assert.False(t, ok)
		_, ok = store.Get(ctx, PathKey("/news"))
		assert.True(t, ok)
	})

	t.Run("tag invalidation", func(t *testing.T) {
		require.NoError(t, store.InvalidateTag(ctx, "news"))
		_, ok := store.Get(ctx, PathKey("/news"))
		assert.False(t, ok)
		_, ok = store.Get(ctx, PathKey("/"))
		assert.False(t, ok)
	})

	t.Run("invalidating unknown targets is a no-op", func(t *testing.T) {
		assert.NoError(t, store.InvalidateTag(ctx, "associations"))
		assert.NoError(t, store.InvalidatePath(ctx, "/association/renda-viva"))
		assert.NoError(t, store.InvalidateTag(ctx, "associations"))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
		require.NoError(t, store.Clear(ctx))
		_, ok := store.Get(ctx, "k")
		assert.False(t, ok)
	})
}

func TestLocalStore(t *testing.T) {
	storeContract(t, NewLocalStore(time.Minute, time.Minute))
}

func TestLocalStore_IndexFollowsEviction(t *testing.T) {
	s := NewLocalStore(time.Minute, time.Minute)
	ctx := context.Background()

	s.Set(ctx, "a", []byte("1"), 0, "products", "news")
	s.Set(ctx, "b", []byte("2"), 0, "products")
	assert.Equal(t, 2, s.TagSize("products"))

	require.NoError(t, s.Delete(ctx, "a"))
	assert.Equal(t, 1, s.TagSize("products"))
	assert.Equal(t, 0, s.TagSize("news"))

	// Re-setting a key with new tags drops the old memberships.
	s.Set(ctx, "b", []byte("3"), 0, "settings")
	assert.Equal(t, 0, s.TagSize("products"))
	assert.Equal(t, 1, s.TagSize("settings"))
}

func TestLocalStore_ConcurrentSetKeepsLiveKeyIndexed(t *testing.T) {
	s := NewLocalStore(time.Minute, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2000; i++ {
		require.NoError(t, s.Set(ctx, "k", []byte("old"), 0, "t"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.InvalidateTag(ctx, "t")
		}()
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "k", []byte("new"), 0, "t")
		}()
		wg.Wait()

		if _, live := s.Get(ctx, "k"); live {
			require.Equal(t, 1, s.TagSize("t"), "round %d: live key lost its tag", i)
		}
	}
}

func TestLocalStore_Expiry(t *testing.T) {
	s := NewLocalStore(time.Minute, time.Minute)
	s.Set(context.Background(), "short", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	_, ok := s.Get(context.Background(), "short")
	assert.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	client, mr := newRedisClient(t)
	storeContract(t, NewRedisStore(client, "test:", time.Minute, false))
	assert.False(t, mr.Exists("test:tag:news"))
}

func TestRedisStore_ConcurrentSetKeepsLiveKeyTagged(t *testing.T) {
	client, mr := newRedisClient(t)
	store := NewRedisStore(client, "test:", time.Minute, false)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		require.NoError(t, store.Set(ctx, "k", []byte("old"), 0, "t"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.InvalidateTag(ctx, "t")
		}()
		go func() {
			defer wg.Done()
			_ = store.Set(ctx, "k", []byte("new"), 0, "t")
		}()
		wg.Wait()

		if mr.Exists("test:k") {
			require.True(t, mr.Exists("test:tag:t"), "round %d: live key lost its tag", i)
			members, err := mr.Members("test:tag:t")
			require.NoError(t, err)
			require.Contains(t, members, "k")
		}
	}
}

func TestRedisStore_TTL(t *testing.T) {
	client, mr := newRedisClient(t)
	store := NewRedisStore(client, "test:", time.Minute, false)

	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), 0, "products"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))
	assert.Equal(t, 2*time.Minute, mr.TTL("test:tag:products"))

	mr.FastForward(time.Minute)
	_, ok := store.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestRedisStore_BroadcastsInvalidations(t *testing.T) {
	client, _ := newRedisClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, InvalidationChannel)
	require.NoError(t, err)
	defer sub.Close()

	store := NewRedisStore(client, "test:", time.Minute, true)
	require.NoError(t, store.InvalidateTag(ctx, "products"))

	select {
	case msg := <-sub.Channel():
		inv, err := decodeInvalidation(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, invalidation{Kind: "tag", Value: "products"}, inv)
	case <-time.After(2 * time.Second):
		t.Fatal("no invalidation broadcast")
	}
}

func TestTwoTierStore(t *testing.T) {
	client, _ := newRedisClient(t)
	store, err := NewTwoTierStore(context.Background(), client, "test:", time.Minute, 30*time.Second)
	require.NoError(t, err)
	defer store.Close()

	storeContract(t, store)
}

func TestTwoTierStore_PeerInvalidationDropsL1(t *testing.T) {
	client, _ := newRedisClient(t)
	ctx := context.Background()

	a, err := NewTwoTierStore(ctx, client, "test:", time.Minute, time.Minute)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewTwoTierStore(ctx, client, "test:", time.Minute, time.Minute)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Set(ctx, PathKey("/news"), []byte("old"), 0, PathTag("/news"), "news"))
	require.NoError(t, b.l1.Set(ctx, PathKey("/news"), []byte("old"), 0, PathTag("/news"), "news"))

	require.NoError(t, a.InvalidateTag(ctx, "news"))

	assert.Eventually(t, func() bool {
		_, ok := b.Get(ctx, PathKey("/news"))
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{Type: TypeLocal})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	_, err = New(ctx, Config{Type: TypeRedis})
	assert.Error(t, err)

	_, err = New(ctx, Config{Type: "memcached"})
	assert.Error(t, err)

	client, _ := newRedisClient(t)
	s, err = New(ctx, Config{Type: TypeTwoTier, Redis: client})
	require.NoError(t, err)
	assert.IsType(t, &TwoTierStore{}, s)
	assert.NoError(t, s.Close())
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", NormalizePath(""))
	assert.Equal(t, "/", NormalizePath("/"))
	assert.Equal(t, "/", NormalizePath("//"))
	assert.Equal(t, "/catalog", NormalizePath("/catalog/"))
	assert.Equal(t, "/product/x", NormalizePath("product/x"))
}
