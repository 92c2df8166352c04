// Package locks keeps scheduled jobs from running on more than one instance
// at a time. RedsyncManager coordinates through Redis; LocalManager only
// within the process, for single-instance deployments.
package locks

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"renda-edge/internal/redis"
)

// Lock is a held lock. Release is safe to call more than once.
type Lock interface {
	Key() string
	Release(ctx context.Context) error
	IsHeld() bool
}

// Manager hands out named locks.
type Manager interface {
	// TryAcquire takes the lock without waiting. The error wraps
	// ErrLockHeld when somebody else has it.
	TryAcquire(ctx context.Context, key string, expiration time.Duration) (Lock, error)
	Close() error
}

// ErrLockHeld is returned by TryAcquire when the lock is taken.
var ErrLockHeld = stderrors.New("lock is held by another instance")

// NewManager returns a RedsyncManager when a Redis client is given and a
// LocalManager otherwise.
func NewManager(client *redis.Client) (Manager, error) {
	if client == nil {
		return NewLocalManager(), nil
	}
	return NewRedsyncManager(client)
}

// LocalManager is an in-process Manager.
type LocalManager struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalManager() *LocalManager {
	return &LocalManager{held: make(map[string]time.Time), now: time.Now}
}

func (m *LocalManager) TryAcquire(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.held[key]; ok && now.Before(until) {
		return nil, ErrLockHeld
	}
	until := now.Add(expiration)
	m.held[key] = until
	return &localLock{manager: m, key: key, until: until}, nil
}

func (m *LocalManager) Close() error {
	m.mu.Lock()
	m.held = make(map[string]time.Time)
	m.mu.Unlock()
	return nil
}

type localLock struct {
	manager *LocalManager
	key     string
	until   time.Time

	mu       sync.Mutex
	released bool
}

func (l *localLock) Key() string { return l.key }

func (l *localLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true

	l.manager.mu.Lock()
	// a later holder may own the key after our lease expired
	if until, ok := l.manager.held[l.key]; ok && until.Equal(l.until) {
		delete(l.manager.held, l.key)
	}
	l.manager.mu.Unlock()
	return nil
}

func (l *localLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.released && l.manager.now().Before(l.until)
}
