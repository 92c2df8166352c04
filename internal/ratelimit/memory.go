package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Counts are lost on restart
// and are not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	now     Clock

	stop     chan struct{}
	stopOnce sync.Once
}

type MemoryOption func(*MemoryStore)

// WithClock overrides time.Now.
func WithClock(c Clock) MemoryOption {
	return func(s *MemoryStore) { s.now = c }
}

// NewMemoryStore creates a store and starts a janitor that drops expired
// records every cleanupInterval. A zero interval disables the janitor.
func NewMemoryStore(cleanupInterval time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cleanupInterval > 0 {
		go s.janitor(cleanupInterval)
	}
	return s
}

func (s *MemoryStore) Take(_ context.Context, key string, max int, window time.Duration) (Record, bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || !now.Before(rec.ResetAt) {
		rec = &Record{Key: key, Count: 1, WindowStart: now, ResetAt: now.Add(window)}
		s.records[key] = rec
		return *rec, true, nil
	}

	if rec.Count >= max {
		return *rec, false, nil
	}
	rec.Count++
	return *rec, true, nil
}

// Len returns the number of records held, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sweep removes expired records.
func (s *MemoryStore) Sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.records {
		if !now.Before(rec.ResetAt) {
			delete(s.records, k)
		}
	}
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
