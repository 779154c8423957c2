package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// GroupRepo implements group.Repository against PostgreSQL.
type GroupRepo struct{ db *sql.DB }

// NewGroupRepo creates a Postgres-backed group wish repository.
func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{db: db} }

const groupColumns = `
	id, title, COALESCE(description, ''), recipient_id, creator_id,
	deadline, scheduled_send_at, invitation_code, allow_anonymous,
	is_active, is_sent, created_at, updated_at`

func (r *GroupRepo) scanOne(row *sql.Row, what string) (*domain.GroupWish, error) {
	g := &domain.GroupWish{}
	err := row.Scan(&g.ID, &g.Title, &g.Description, &g.RecipientID, &g.CreatorID,
		&g.Deadline, &g.ScheduledSendAt, &g.InvitationCode, &g.AllowAnonymous,
		&g.IsActive, &g.IsSent, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, domain.NotFoundf("%s", what)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	return g, nil
}

func (r *GroupRepo) Get(ctx context.Context, id string) (*domain.GroupWish, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `SELECT`+groupColumns+` FROM group_wishes WHERE id = $1`, id),
		"group wish "+id)
}

func (r *GroupRepo) GetByCode(ctx context.Context, code string) (*domain.GroupWish, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `SELECT`+groupColumns+` FROM group_wishes WHERE invitation_code = $1`, code),
		"invitation code "+code)
}

func (r *GroupRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_wishes WHERE invitation_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check invitation code: %w", err)
	}
	return exists, nil
}

// Create inserts the group wish; the unique index on invitation_code turns
// a concurrent duplicate into domain.ErrConflict.
func (r *GroupRepo) Create(ctx context.Context, g *domain.GroupWish) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO group_wishes (id, title, description, recipient_id, creator_id,
			deadline, scheduled_send_at, invitation_code, allow_anonymous,
			is_active, is_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, g.ID, g.Title, g.Description, g.RecipientID, g.CreatorID,
		g.Deadline, g.ScheduledSendAt, g.InvitationCode, g.AllowAnonymous,
		g.IsActive, g.IsSent, g.CreatedAt, g.UpdatedAt)
	if isUniqueViolation(err, "") {
		return domain.Conflictf("invitation code %s taken", g.InvitationCode)
	}
	if err != nil {
		return fmt.Errorf("insert group wish: %w", err)
	}
	return nil
}

func (r *GroupRepo) AddContribution(ctx context.Context, c *domain.Contribution) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO group_contributions (id, group_id, contributor_id, content, media_ref, anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.GroupID, c.ContributorID, c.Content, c.MediaRef, c.Anonymous, c.CreatedAt)
	if isUniqueViolation(err, "") {
		return domain.Conflictf("contribution by %s to %s exists", c.ContributorID, c.GroupID)
	}
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

func (r *GroupRepo) HasContribution(ctx context.Context, groupID, contributorID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_contributions WHERE group_id = $1 AND contributor_id = $2)
	`, groupID, contributorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check contribution: %w", err)
	}
	return exists, nil
}

func (r *GroupRepo) ListContributions(ctx context.Context, groupID string) ([]domain.Contribution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, contributor_id, content, COALESCE(media_ref, ''), anonymous, created_at
		FROM group_contributions
		WHERE group_id = $1
		ORDER BY created_at, id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	var out []domain.Contribution
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(&c.ID, &c.GroupID, &c.ContributorID, &c.Content, &c.MediaRef, &c.Anonymous, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
