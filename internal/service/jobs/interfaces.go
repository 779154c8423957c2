package jobs

import (
	"context"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/recurrence"
)

// WatermarkStore persists the last completed period per job.
type WatermarkStore interface {
	// Last returns the job's watermark, or nil when it never completed.
	Last(ctx context.Context, jobName string) (*domain.JobWatermark, error)
	// Commit records that jobName completed period.
	Commit(ctx context.Context, mark domain.JobWatermark) error
}

// BirthdayLookup finds the profiles celebrating on a date.
type BirthdayLookup interface {
	OnDate(ctx context.Context, date recurrence.Date) ([]domain.Profile, error)
}

// IntentSink receives notification intents. Emit reports false when an
// identical intent was already recorded.
type IntentSink interface {
	Emit(ctx context.Context, intent domain.Intent) (bool, error)
}

// MediaStore deletes large media payloads.
type MediaStore interface {
	Delete(ctx context.Context, ref string) error
}

// MediaRepository lists and clears wish media references for cleanup.
type MediaRepository interface {
	// ListExpiredMedia returns up to limit wishes with a media reference
	// created before cutoff, ordered by id and starting after afterID.
	ListExpiredMedia(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]domain.Wish, error)
	// ClearMedia removes the reference from a wish if it still equals ref.
	ClearMedia(ctx context.Context, wishID, ref string) error
}
