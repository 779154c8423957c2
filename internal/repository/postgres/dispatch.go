package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// DispatchRepo is the durable dispatch queue backing notification.Queue.
// Several dispatcher processes may claim from it concurrently.
type DispatchRepo struct{ db *sql.DB }

// NewDispatchRepo creates a Postgres-backed dispatch queue.
func NewDispatchRepo(db *sql.DB) *DispatchRepo { return &DispatchRepo{db: db} }

// Enqueue upserts the single job for wishID. Re-enqueueing moves the due
// time and drops any outstanding claim.
func (r *DispatchRepo) Enqueue(ctx context.Context, wishID string, deliverAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_jobs (id, wish_id, deliver_at, claims, created_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (wish_id) DO UPDATE
		SET deliver_at = EXCLUDED.deliver_at, claimed_until = NULL
	`, uuid.New().String(), wishID, deliverAt)
	if err != nil {
		return fmt.Errorf("enqueue wish %s: %w", wishID, err)
	}
	return nil
}

// ClaimDue atomically claims due jobs. FOR UPDATE SKIP LOCKED keeps
// concurrent dispatchers from claiming the same row.
func (r *DispatchRepo) ClaimDue(ctx context.Context, now time.Time, limit int, claimTTL time.Duration) ([]domain.DispatchJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH due AS (
			SELECT id FROM dispatch_jobs
			WHERE deliver_at <= $1
			  AND (claimed_until IS NULL OR claimed_until < $1)
			ORDER BY deliver_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE dispatch_jobs j
		SET claimed_until = $3, claims = j.claims + 1
		FROM due
		WHERE j.id = due.id
		RETURNING j.id, j.wish_id, j.deliver_at, j.claimed_until, j.claims, j.created_at
	`, now, limit, now.Add(claimTTL))
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.DispatchJob
	for rows.Next() {
		var (
			j       domain.DispatchJob
			claimed sql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.WishID, &j.DeliverAt, &claimed, &j.Claims, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch job: %w", err)
		}
		if claimed.Valid {
			t := claimed.Time
			j.ClaimedUntil = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *DispatchRepo) Complete(ctx context.Context, jobID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dispatch_jobs WHERE id = $1`, jobID); err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

// Pending counts jobs not yet completed.
func (r *DispatchRepo) Pending(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatch_jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dispatch jobs: %w", err)
	}
	return n, nil
}
