package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// ProfileRepo implements birthday.ProfileRepository against PostgreSQL.
type ProfileRepo struct{ db *sql.DB }

// NewProfileRepo creates a Postgres-backed profile repository.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

const profileColumns = `
	user_id, username, COALESCE(display_name, ''), COALESCE(email, ''),
	birth_year, birth_month, birth_day, COALESCE(timezone, ''), created_at`

func (r *ProfileRepo) ListWithBirthdays(ctx context.Context) ([]domain.Profile, error) {
	return r.query(ctx, `
		SELECT`+profileColumns+`
		FROM profiles
		WHERE birth_month IS NOT NULL AND birth_day IS NOT NULL
		ORDER BY user_id`)
}

func (r *ProfileRepo) ListByBirthday(ctx context.Context, month time.Month, days ...int) ([]domain.Profile, error) {
	ds := make([]int64, len(days))
	for i, d := range days {
		ds[i] = int64(d)
	}
	return r.query(ctx, `
		SELECT`+profileColumns+`
		FROM profiles
		WHERE birth_month = $1 AND birth_day = ANY($2)
		ORDER BY user_id`, int(month), pq.Array(ds))
}

func (r *ProfileRepo) ListByBirthMonth(ctx context.Context, month time.Month) ([]domain.Profile, error) {
	return r.query(ctx, `
		SELECT`+profileColumns+`
		FROM profiles
		WHERE birth_month = $1 AND birth_day IS NOT NULL
		ORDER BY birth_day, user_id`, int(month))
}

// Get returns a single profile.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	ps, err := r.query(ctx, `SELECT`+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, domain.NotFoundf("profile %s", userID)
	}
	return &ps[0], nil
}

func (r *ProfileRepo) query(ctx context.Context, q string, args ...interface{}) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		var (
			p                domain.Profile
			year, month, day sql.NullInt64
		)
		if err := rows.Scan(&p.UserID, &p.Username, &p.DisplayName, &p.Email,
			&year, &month, &day, &p.Timezone, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if month.Valid && day.Valid {
			p.Birthday = &domain.BirthDate{
				Year:  int(year.Int64),
				Month: time.Month(month.Int64),
				Day:   int(day.Int64),
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}
