package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalStore wraps patrickmn/go-cache and keeps a tag index beside it.
type LocalStore struct {
	items *gocache.Cache

	mu      sync.Mutex
	tags    map[string]map[string]struct{}
	keyTags map[string][]string
}

func NewLocalStore(defaultTTL, cleanupInterval time.Duration) *LocalStore {
	s := &LocalStore{
		items:   gocache.New(defaultTTL, cleanupInterval),
		tags:    make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
	}
	// go-cache calls this after releasing its own lock, so a Set may already
	// have stored key again. Its index entries belong to that newer item.
	s.items.OnEvicted(func(key string, _ interface{}) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, live := s.items.Get(key); live {
			return
		}
		s.unindex(key)
	})
	return s
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}

	// Index and store under s.mu so the eviction callback sees both or
	// neither.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unindex(key)
	for _, tag := range tags {
		set, ok := s.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			s.tags[tag] = set
		}
		set[key] = struct{}{}
	}
	if len(tags) > 0 {
		s.keyTags[key] = append([]string(nil), tags...)
	}

	s.items.Set(key, value, ttl)
	return nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

func (s *LocalStore) InvalidatePath(ctx context.Context, path string) error {
	return s.InvalidateTag(ctx, PathTag(path))
}

func (s *LocalStore) InvalidateTag(_ context.Context, tag string) error {
	s.mu.Lock()
	set := s.tags[tag]
	delete(s.tags, tag)
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.items.Delete(k)
	}
	return nil
}

func (s *LocalStore) Clear(_ context.Context) error {
	s.items.Flush()
	s.mu.Lock()
	s.tags = make(map[string]map[string]struct{})
	s.keyTags = make(map[string][]string)
	s.mu.Unlock()
	return nil
}

func (s *LocalStore) Close() error {
	return nil
}

// TagSize returns how many live index entries tag has.
func (s *LocalStore) TagSize(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tags[tag])
}

// unindex removes key from every tag set. Caller holds s.mu.
func (s *LocalStore) unindex(key string) {
	for _, tag := range s.keyTags[key] {
		if set, ok := s.tags[tag]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(s.tags, tag)
			}
		}
	}
	delete(s.keyTags, key)
}
