package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/wish"
)

// WishRepo implements wish.Repository and jobs.MediaRepository.
type WishRepo struct{ db *sql.DB }

// NewWishRepo creates a Postgres-backed wish repository.
func NewWishRepo(db *sql.DB) *WishRepo { return &WishRepo{db: db} }

const wishColumns = `
	id, sender_id, recipient_id, kind, status,
	COALESCE(text_content, ''), COALESCE(card_template, ''), COALESCE(media_ref, ''),
	is_public, is_anonymous, scheduled_at, sent_at, COALESCE(failure_reason, ''),
	created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWish(s scanner) (*domain.Wish, error) {
	var (
		w                   domain.Wish
		scheduledAt, sentAt sql.NullTime
	)
	err := s.Scan(&w.ID, &w.SenderID, &w.RecipientID, &w.Kind, &w.Status,
		&w.TextContent, &w.CardTemplate, &w.MediaRef,
		&w.IsPublic, &w.IsAnonymous, &scheduledAt, &sentAt, &w.FailureReason,
		&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		w.ScheduledAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		w.SentAt = &t
	}
	return &w, nil
}

func (r *WishRepo) Get(ctx context.Context, id string) (*domain.Wish, error) {
	w, err := scanWish(r.db.QueryRowContext(ctx, `SELECT`+wishColumns+` FROM wishes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, domain.NotFoundf("wish %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get wish: %w", err)
	}
	return w, nil
}

func (r *WishRepo) Create(ctx context.Context, w *domain.Wish) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wishes (id, sender_id, recipient_id, kind, status,
			text_content, card_template, media_ref, is_public, is_anonymous,
			scheduled_at, sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, w.ID, w.SenderID, w.RecipientID, string(w.Kind), string(w.Status),
		w.TextContent, w.CardTemplate, w.MediaRef, w.IsPublic, w.IsAnonymous,
		w.ScheduledAt, w.SentAt, w.CreatedAt, w.UpdatedAt)
	if isUniqueViolation(err, "") {
		return domain.Conflictf("wish %s already exists", w.ID)
	}
	if err != nil {
		return fmt.Errorf("insert wish: %w", err)
	}
	return nil
}

// Transition is a single compare-and-set UPDATE guarded by the expected
// status. sent_at is written only by transitions into sent.
func (r *WishRepo) Transition(ctx context.Context, t domain.WishTransition) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wishes
		SET status = $3,
		    scheduled_at = COALESCE($4, scheduled_at),
		    sent_at = CASE WHEN $3 = 'sent' THEN $5 ELSE sent_at END,
		    failure_reason = $6,
		    updated_at = $7
		WHERE id = $1 AND status = $2
	`, t.WishID, string(t.From), string(t.To), t.ScheduledAt, t.SentAt, t.FailureReason, t.At)
	if isInvalidText(err) {
		return domain.NotFoundf("wish %s", t.WishID)
	}
	if err != nil {
		return fmt.Errorf("transition wish %s: %w", t.WishID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition wish %s: %w", t.WishID, err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM wishes WHERE id = $1)`, t.WishID).Scan(&exists); err != nil {
		return fmt.Errorf("check wish %s: %w", t.WishID, err)
	}
	if !exists {
		return domain.NotFoundf("wish %s", t.WishID)
	}
	return wish.ErrStaleStatus
}

func (r *WishRepo) ListExpiredMedia(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]domain.Wish, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+wishColumns+`
		FROM wishes
		WHERE media_ref <> '' AND created_at < $1 AND id::text > $2
		ORDER BY id::text
		LIMIT $3
	`, cutoff, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired media: %w", err)
	}
	defer rows.Close()

	var out []domain.Wish
	for rows.Next() {
		w, err := scanWish(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wish: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (r *WishRepo) ClearMedia(ctx context.Context, wishID, ref string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wishes SET media_ref = '', updated_at = NOW()
		WHERE id = $1 AND media_ref = $2
	`, wishID, ref)
	if err != nil {
		return fmt.Errorf("clear media of wish %s: %w", wishID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("media of wish %s changed", wishID)
	}
	return nil
}
