package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisManager implements Manager with bsm/redislock. Expiry is enforced by
// the Redis key TTL, so a crashed holder loses the lease after ttl.
type RedisManager struct {
	locker *redislock.Client
	prefix string
}

// NewRedisManager creates a Redis-backed lease manager. Keys are prefixed
// with prefix.
func NewRedisManager(client redis.UniversalClient, prefix string) *RedisManager {
	return &RedisManager{locker: redislock.New(client), prefix: prefix}
}

// Acquire obtains the named lease. It does not wait for a current holder.
func (m *RedisManager) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	lock, err := m.locker.Obtain(ctx, m.prefix+name, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotAcquired
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	return &redisLease{name: name, lock: lock}, nil
}

type redisLease struct {
	name string
	lock *redislock.Lock
}

func (l *redisLease) Name() string { return l.name }

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	if err := l.lock.Refresh(ctx, ttl, nil); err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return fmt.Errorf("extend lease %s: %w", l.name, ErrNotAcquired)
		}
		return fmt.Errorf("extend lease %s: %w", l.name, err)
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if err == nil || errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return fmt.Errorf("release lease %s: %w", l.name, err)
}
