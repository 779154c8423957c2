package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// WatermarkRepo implements jobs.WatermarkStore.
type WatermarkRepo struct{ db *sql.DB }

// NewWatermarkRepo creates a Postgres-backed watermark store.
func NewWatermarkRepo(db *sql.DB) *WatermarkRepo { return &WatermarkRepo{db: db} }

func (r *WatermarkRepo) Last(ctx context.Context, jobName string) (*domain.JobWatermark, error) {
	var m domain.JobWatermark
	err := r.db.QueryRowContext(ctx, `
		SELECT job_name, period, completed_at FROM job_watermarks WHERE job_name = $1
	`, jobName).Scan(&m.JobName, &m.Period, &m.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark %s: %w", jobName, err)
	}
	return &m, nil
}

// Commit upserts the watermark. Periods are compared as strings, so an
// older period never overwrites a newer one.
func (r *WatermarkRepo) Commit(ctx context.Context, m domain.JobWatermark) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_watermarks (job_name, period, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_name) DO UPDATE
		SET period = EXCLUDED.period, completed_at = EXCLUDED.completed_at
		WHERE job_watermarks.period <= EXCLUDED.period
	`, m.JobName, m.Period, m.CompletedAt)
	if err != nil {
		return fmt.Errorf("commit watermark %s: %w", m.JobName, err)
	}
	return nil
}
