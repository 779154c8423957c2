// Package lease provides named, time-bounded exclusive leases shared by every
// worker process. A periodic job holds the lease named after itself while it
// runs, so at most one process executes a given job at a time.
package lease

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Acquire when another holder owns the lease.
var ErrNotAcquired = errors.New("lease: not acquired")

// Lease is a held lease. Release is safe to call more than once.
type Lease interface {
	// Name is the lease key.
	Name() string
	// Extend pushes the expiry out by ttl while the work is still running.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release gives the lease up if it is still held by us.
	Release(ctx context.Context) error
}

// Manager hands out leases by name.
type Manager interface {
	// Acquire obtains the named lease for ttl without blocking. It returns
	// ErrNotAcquired when the lease is held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// NewManager picks the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host leases).
// Otherwise falls back to PostgreSQL advisory locks.
func NewManager(redisClient *redis.Client, db *sql.DB) Manager {
	if redisClient != nil {
		return NewRedisManager(redisClient, "lease:")
	}
	return NewPGAdvisoryManager(db)
}
