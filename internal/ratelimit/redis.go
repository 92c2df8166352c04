package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// takeScript increments KEYS[1] unless it already reached ARGV[1] and sets the
// window expiry (ARGV[2], milliseconds) when it opens a window.
// Returns {count, ttl_ms, allowed}.
var takeScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= max then
  local ttl = redis.call('PTTL', KEYS[1])
  if ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], window)
    ttl = window
  end
  return {current, ttl, 0}
end
current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if current == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
return {current, ttl, 1}
`)

// RedisStore keeps counters in Redis so every instance shares them. The
// check and the increment run in one script, so concurrent requests for the
// same key cannot both take the last slot.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    Clock
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) Take(ctx context.Context, key string, max int, window time.Duration) (Record, bool, error) {
	res, err := takeScript.Run(ctx, s.rdb, []string{s.prefix + key}, max, window.Milliseconds()).Slice()
	if err != nil {
		return Record{}, false, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Record{}, false, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	count, _ := res[0].(int64)
	ttl, _ := res[1].(int64)
	allowed, _ := res[2].(int64)

	now := s.now()
	resetAt := now.Add(time.Duration(ttl) * time.Millisecond)
	return Record{
		Key:         key,
		Count:       int(count),
		WindowStart: resetAt.Add(-window),
		ResetAt:     resetAt,
	}, allowed == 1, nil
}
