package lease

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// PGAdvisoryManager implements Manager with PostgreSQL advisory locks
// (fallback when Redis is unavailable).
//
// pg_try_advisory_lock is session-scoped, so each lease pins one pooled
// connection until it is released. The lock is released automatically if
// that connection drops. There is no TTL: Extend is a no-op.
type PGAdvisoryManager struct {
	db *sql.DB
}

// NewPGAdvisoryManager creates an advisory-lock lease manager.
func NewPGAdvisoryManager(db *sql.DB) *PGAdvisoryManager {
	return &PGAdvisoryManager{db: db}
}

// LockID derives the deterministic advisory lock id for a lease name.
func LockID(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// Acquire tries the advisory lock without blocking.
func (m *PGAdvisoryManager) Acquire(ctx context.Context, name string, _ time.Duration) (Lease, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	id := LockID(name)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if !acquired {
		conn.Close()
		return nil, ErrNotAcquired
	}
	return &pgLease{name: name, id: id, conn: conn}, nil
}

type pgLease struct {
	name string
	id   int64

	mu   sync.Mutex
	conn *sql.Conn
}

func (l *pgLease) Name() string { return l.name }

func (l *pgLease) Extend(context.Context, time.Duration) error { return nil }

func (l *pgLease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.id)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.name, err)
	}
	return closeErr
}
