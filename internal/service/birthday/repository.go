package birthday

import (
	"context"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// ProfileRepository is the read-only profile store used by the queries.
// Implementations must be safe for concurrent use.
type ProfileRepository interface {
	// ListWithBirthdays returns every profile with a birth date set.
	ListWithBirthdays(ctx context.Context) ([]domain.Profile, error)

	// ListByBirthday returns profiles born in month on any of days,
	// regardless of year.
	ListByBirthday(ctx context.Context, month time.Month, days ...int) ([]domain.Profile, error)

	// ListByBirthMonth returns profiles born in month.
	ListByBirthMonth(ctx context.Context, month time.Month) ([]domain.Profile, error)
}
