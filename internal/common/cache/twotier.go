package cache

import (
	"context"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"renda-edge/internal/common/logging"
	redisclient "renda-edge/internal/redis"
)

// TwoTierStore reads through a short-lived local copy of a shared Redis store.
type TwoTierStore struct {
	l1    *LocalStore
	l2    *RedisStore
	l1TTL time.Duration

	sub    *goredis.PubSub
	logger logging.Logger
	wg     sync.WaitGroup
}

// NewTwoTierStore subscribes to InvalidationChannel before returning, so no
// invalidation published afterwards is missed.
func NewTwoTierStore(ctx context.Context, client *redisclient.Client, prefix string, ttl, l1TTL time.Duration) (*TwoTierStore, error) {
	sub, err := client.Subscribe(ctx, InvalidationChannel)
	if err != nil {
		return nil, err
	}
	if l1TTL <= 0 || l1TTL > ttl {
		l1TTL = ttl
	}

	t := &TwoTierStore{
		l1:     NewLocalStore(l1TTL, 2*l1TTL),
		l2:     NewRedisStore(client, prefix, ttl, true),
		l1TTL:  l1TTL,
		sub:    sub,
		logger: logging.GetGlobalLogger().WithFields(logging.String("component", "cache")),
	}
	t.wg.Add(1)
	go t.listen()
	return t, nil
}

func (t *TwoTierStore) listen() {
	defer t.wg.Done()
	ctx := context.Background()
	for msg := range t.sub.Channel() {
		inv, err := decodeInvalidation(msg.Payload)
		if err != nil {
			t.logger.Warn("Ignoring malformed invalidation", logging.String("payload", msg.Payload))
			continue
		}
		switch inv.Kind {
		case "tag":
			_ = t.l1.InvalidateTag(ctx, inv.Value)
		case "clear":
			_ = t.l1.Clear(ctx)
		}
	}
}

func (t *TwoTierStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := t.l1.Get(ctx, key); ok {
		return v, true
	}
	// L2 hits are not copied into L1: the tags are unknown here and an
	// untagged L1 entry would survive invalidation.
	return t.l2.Get(ctx, key)
}

func (t *TwoTierStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if err := t.l2.Set(ctx, key, value, ttl, tags...); err != nil {
		return err
	}
	l1TTL := t.l1TTL
	if ttl > 0 && ttl < l1TTL {
		l1TTL = ttl
	}
	return t.l1.Set(ctx, key, value, l1TTL, tags...)
}

func (t *TwoTierStore) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	return t.l2.Delete(ctx, key)
}

func (t *TwoTierStore) InvalidatePath(ctx context.Context, path string) error {
	return t.InvalidateTag(ctx, PathTag(path))
}

func (t *TwoTierStore) InvalidateTag(ctx context.Context, tag string) error {
	_ = t.l1.InvalidateTag(ctx, tag)
	return t.l2.InvalidateTag(ctx, tag)
}

func (t *TwoTierStore) Clear(ctx context.Context) error {
	_ = t.l1.Clear(ctx)
	return t.l2.Clear(ctx)
}

// Close stops the subscription listener.
func (t *TwoTierStore) Close() error {
	err := t.sub.Close()
	t.wg.Wait()
	return err
}
