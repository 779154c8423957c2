package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// IntentRepo records notification intents. The unique key
// (kind, profile_id, occurs_on) makes emission idempotent.
type IntentRepo struct{ db *sql.DB }

// NewIntentRepo creates a Postgres-backed intent store.
func NewIntentRepo(db *sql.DB) *IntentRepo { return &IntentRepo{db: db} }

// Emit stores the intent and reports whether it was new.
func (r *IntentRepo) Emit(ctx context.Context, in domain.Intent) (bool, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_intents (id, kind, profile_id, name, occurs_on, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (kind, profile_id, occurs_on) DO NOTHING
	`, in.ID, string(in.Kind), in.ProfileID, in.Name, in.OccursOn, in.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert intent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert intent: %w", err)
	}
	return n == 1, nil
}

// ListOn returns the intents for a date, oldest first.
func (r *IntentRepo) ListOn(ctx context.Context, occursOn string) ([]domain.Intent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, profile_id, name, occurs_on, created_at
		FROM notification_intents
		WHERE occurs_on = $1
		ORDER BY created_at, id
	`, occursOn)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	defer rows.Close()

	var out []domain.Intent
	for rows.Next() {
		var in domain.Intent
		if err := rows.Scan(&in.ID, &in.Kind, &in.ProfileID, &in.Name, &in.OccursOn, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Retract removes a recorded intent so a later run emits it again.
func (r *IntentRepo) Retract(ctx context.Context, in domain.Intent) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM notification_intents
		WHERE kind = $1 AND profile_id = $2 AND occurs_on = $3
	`, string(in.Kind), in.ProfileID, in.OccursOn)
	if err != nil {
		return fmt.Errorf("retract intent: %w", err)
	}
	return nil
}
