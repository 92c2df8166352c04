package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"renda-edge/internal/common/errors"
	"renda-edge/internal/redis"
)

// RedsyncManager implements Manager with the Redlock algorithm from
// go-redsync/redsync/v4. Held locks are extended in the background at a third
// of their expiry until released.
type RedsyncManager struct {
	redsync *redsync.Redsync
	mu      sync.Mutex
	held    map[string]*RedsyncLock
}

// RedsyncLock wraps a redsync.Mutex.
type RedsyncLock struct {
	mutex      *redsync.Mutex
	key        string
	expiration time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	manager    *RedsyncManager
	once       sync.Once
}

func NewRedsyncManager(client *redis.Client) (*RedsyncManager, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	pool := goredis.NewPool(client.Raw())
	return &RedsyncManager{
		redsync: redsync.New(pool),
		held:    make(map[string]*RedsyncLock),
	}, nil
}

func (rm *RedsyncManager) TryAcquire(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	mutex := rm.redsync.NewMutex(fmt.Sprintf("lock:%s", key), redsync.WithExpiry(expiration))

	if err := mutex.TryLockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// redsync reports a taken lock and an unreachable node alike
		return nil, fmt.Errorf("%w: %v", ErrLockHeld, err)
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	lock := &RedsyncLock{
		mutex:      mutex,
		key:        key,
		expiration: expiration,
		ctx:        lockCtx,
		cancel:     cancel,
		manager:    rm,
	}

	rm.mu.Lock()
	rm.held[key] = lock
	rm.mu.Unlock()

	go rm.renew(lock)
	return lock, nil
}

func (rm *RedsyncManager) renew(lock *RedsyncLock) {
	interval := lock.expiration / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-lock.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok, err := lock.mutex.ExtendContext(ctx)
			cancel()
			if err != nil || !ok {
				// lost it; stop pretending we hold it
				lock.release()
				return
			}
		}
	}
}

func (rm *RedsyncManager) Close() error {
	rm.mu.Lock()
	locks := make([]*RedsyncLock, 0, len(rm.held))
	for _, l := range rm.held {
		locks = append(locks, l)
	}
	rm.mu.Unlock()

	for _, l := range locks {
		l.release()
	}
	return nil
}

func (rl *RedsyncLock) Key() string { return rl.key }

func (rl *RedsyncLock) Release(ctx context.Context) error {
	rl.release()
	return nil
}

func (rl *RedsyncLock) release() {
	rl.once.Do(func() {
		rl.cancel()

		rl.manager.mu.Lock()
		if rl.manager.held[rl.key] == rl {
			delete(rl.manager.held, rl.key)
		}
		rl.manager.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rl.mutex.UnlockContext(ctx)
	})
}

func (rl *RedsyncLock) IsHeld() bool {
	select {
	case <-rl.ctx.Done():
		return false
	default:
		return true
	}
}

var (
	_ Manager = (*RedsyncManager)(nil)
	_ Manager = (*LocalManager)(nil)
)
