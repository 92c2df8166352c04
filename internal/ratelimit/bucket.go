package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketStore admits bursts of up to max requests and refills one slot
// every window/max. It trades the fixed window's reset burst for a steady
// rate. In-memory only.
type TokenBucketStore struct {
	mu          sync.Mutex
	buckets     map[string]*bucketEntry
	now         Clock
	idleTimeout time.Duration
	lastSweep   time.Time
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewTokenBucketStore drops buckets unused for idleTimeout.
func NewTokenBucketStore(idleTimeout time.Duration) *TokenBucketStore {
	return &TokenBucketStore{
		buckets:     make(map[string]*bucketEntry),
		now:         time.Now,
		idleTimeout: idleTimeout,
		lastSweep:   time.Now(),
	}
}

func (s *TokenBucketStore) Take(_ context.Context, key string, max int, window time.Duration) (Record, bool, error) {
	now := s.now()
	every := window / time.Duration(max)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idleTimeout > 0 && now.Sub(s.lastSweep) > s.idleTimeout {
		s.sweep(now)
	}

	entry, ok := s.buckets[key]
	if !ok {
		entry = &bucketEntry{limiter: rate.NewLimiter(rate.Every(every), max)}
		s.buckets[key] = entry
	}
	entry.lastUsed = now

	allowed := entry.limiter.AllowN(now, 1)

	tokens := entry.limiter.TokensAt(now)
	used := max - int(math.Floor(tokens))
	if used < 0 {
		used = 0
	}
	// Time until one more request fits.
	wait := time.Duration(0)
	if tokens < 1 {
		wait = time.Duration((1 - tokens) * float64(every))
	}

	return Record{
		Key:         key,
		Count:       used,
		WindowStart: now,
		ResetAt:     now.Add(wait),
	}, allowed, nil
}

func (s *TokenBucketStore) sweep(now time.Time) {
	for k, e := range s.buckets {
		if now.Sub(e.lastUsed) > s.idleTimeout {
			delete(s.buckets, k)
		}
	}
	s.lastSweep = now
}
