package lease

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisManager_ExclusiveUntilReleased(t *testing.T) {
	_, client := setupTestRedis(t)
	m := NewRedisManager(client, "lease:")
	ctx := context.Background()

	first, err := m.Acquire(ctx, "daily-birthday-detection", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "daily-birthday-detection", first.Name())

	_, err = m.Acquire(ctx, "daily-birthday-detection", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := m.Acquire(ctx, "weekly-cleanup", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, first.Release(ctx))
	require.NoError(t, first.Release(ctx), "second release is a no-op")

	again, err := m.Acquire(ctx, "daily-birthday-detection", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisManager_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	m := NewRedisManager(client, "lease:")
	ctx := context.Background()

	_, err := m.Acquire(ctx, "job", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("lease:job"))

	mr.FastForward(11 * time.Second)

	l, err := m.Acquire(ctx, "job", 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx))
}

func TestRedisManager_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	m := NewRedisManager(client, "lease:")
	ctx := context.Background()

	l, err := m.Acquire(ctx, "job", 10*time.Second)
	require.NoError(t, err)

	mr.FastForward(8 * time.Second)
	require.NoError(t, l.Extend(ctx, 10*time.Second))
	mr.FastForward(8 * time.Second)

	_, err = m.Acquire(ctx, "job", 10*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired, "extended lease is still held")
}

func TestPGAdvisoryManager_AcquireRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := LockID("weekly-cleanup")
	mock.ExpectQuery("SELECT pg_try_advisory_lock").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	m := NewPGAdvisoryManager(db)
	l, err := m.Acquire(context.Background(), "weekly-cleanup", time.Minute)
	require.NoError(t, err)
	require.NoError(t, l.Extend(context.Background(), time.Minute))
	require.NoError(t, l.Release(context.Background()))
	require.NoError(t, l.Release(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryManager_Held(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	_, err = NewPGAdvisoryManager(db).Acquire(context.Background(), "job", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockID_Deterministic(t *testing.T) {
	assert.Equal(t, LockID("a"), LockID("a"))
	assert.NotEqual(t, LockID("a"), LockID("b"))
}

func TestNewManager_PicksBackend(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.IsType(t, &RedisManager{}, NewManager(client, nil))
	assert.IsType(t, &PGAdvisoryManager{}, NewManager(nil, nil))
}
