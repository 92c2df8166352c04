package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"renda-edge/internal/common/logging"
	redisclient "renda-edge/internal/redis"
)

// InvalidationChannel carries invalidations between instances.
const InvalidationChannel = "renda:cache:invalidate"

// invalidation is the pub/sub message body.
type invalidation struct {
	Kind  string `json:"kind"` // "tag" or "clear"
	Value string `json:"value,omitempty"`
}

// invalidateTagScript deletes every member of the tag set KEYS[1] (stored
// under prefix ARGV[1]) and the set itself in one step, so a concurrent Set
// either lands before and is dropped or after and stays tagged.
// Returns the number of members.
var invalidateTagScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
for _, m in ipairs(members) do
  redis.call('DEL', ARGV[1] .. m)
end
redis.call('DEL', KEYS[1])
return #members
`)

// RedisStore keeps entries in Redis. Each tag is a set of member keys.
type RedisStore struct {
	client     *redisclient.Client
	prefix     string
	defaultTTL time.Duration
	broadcast  bool
	logger     logging.Logger
}

// NewRedisStore creates a store under prefix. With broadcast set, every
// invalidation is also published on InvalidationChannel.
func NewRedisStore(client *redisclient.Client, prefix string, defaultTTL time.Duration, broadcast bool) *RedisStore {
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		broadcast:  broadcast,
		logger:     logging.GetGlobalLogger().WithFields(logging.String("component", "cache")),
	}
}

func (r *RedisStore) valueKey(key string) string { return r.prefix + key }
func (r *RedisStore) tagKey(tag string) string   { return r.prefix + "tag:" + tag }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Raw().Get(ctx, r.valueKey(key)).Bytes()
	if err != nil {
		if err != redisclient.Nil {
			r.logger.Warn("Cache read failed", logging.String("key", key), logging.Err(err))
		}
		return nil, false
	}
	return b, true
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl == 0 {
		ttl = r.defaultTTL
	}
	pipe := r.client.Raw().TxPipeline()
	pipe.Set(ctx, r.valueKey(key), value, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, r.tagKey(tag), key)
		// A tag set outlives its newest member by one TTL at most.
		pipe.Expire(ctx, r.tagKey(tag), 2*ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Raw().Del(ctx, r.valueKey(key)).Err()
}

func (r *RedisStore) InvalidatePath(ctx context.Context, path string) error {
	return r.InvalidateTag(ctx, PathTag(path))
}

func (r *RedisStore) InvalidateTag(ctx context.Context, tag string) error {
	n, err := invalidateTagScript.Run(ctx, r.client.Raw(), []string{r.tagKey(tag)}, r.prefix).Int()
	if err != nil {
		return fmt.Errorf("cache tag %s: %w", tag, err)
	}

	r.logger.Debug("Invalidated cache tag", logging.String("tag", tag), logging.Int("entries", n))
	return r.publish(ctx, invalidation{Kind: "tag", Value: tag})
}

func (r *RedisStore) Clear(ctx context.Context) error {
	rdb := r.client.Raw()
	iter := rdb.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := rdb.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return r.publish(ctx, invalidation{Kind: "clear"})
}

func (r *RedisStore) Close() error {
	return nil
}

func (r *RedisStore) publish(ctx context.Context, msg invalidation) error {
	if !r.broadcast {
		return nil
	}
	if err := r.client.Publish(ctx, InvalidationChannel, msg); err != nil {
		return fmt.Errorf("broadcast invalidation: %w", err)
	}
	return nil
}

func decodeInvalidation(payload string) (invalidation, error) {
	var msg invalidation
	err := json.Unmarshal([]byte(payload), &msg)
	return msg, err
}
