package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
	"github.com/akashvim3/Birthday-Wishes-System/internal/recurrence"
)

const (
	// DefaultRetentionDays is how long attached media is kept.
	DefaultRetentionDays = 90
	// DefaultCleanupBatchSize bounds one cleanup page.
	DefaultCleanupBatchSize = 500
	// DefaultCleanupMaxBatches bounds the pages handled per run; anything
	// left over is picked up by the next run.
	DefaultCleanupMaxBatches = 20
)

// Handlers implements the work behind the periodic jobs. Each operation
// returns a Report of per-record outcomes; the error is only set when the
// operation could not run at all.
type Handlers struct {
	births  BirthdayLookup
	intents IntentSink
	media   MediaStore
	wishes  MediaRepository

	batchSize  int
	maxBatches int
	now        func() time.Time
	log        *logger.Logger
}

// NewHandlers wires the job handlers. media and wishes may be nil when
// cleanup is not used.
func NewHandlers(births BirthdayLookup, intents IntentSink, media MediaStore, wishes MediaRepository) *Handlers {
	return &Handlers{
		births:     births,
		intents:    intents,
		media:      media,
		wishes:     wishes,
		batchSize:  DefaultCleanupBatchSize,
		maxBatches: DefaultCleanupMaxBatches,
		now:        time.Now,
		log:        logger.With("component", "jobs"),
	}
}

// CleanupConfigured reports whether RunCleanup has a media store and a wish
// repository to work with.
func (h *Handlers) CleanupConfigured() bool {
	return h.media != nil && h.wishes != nil
}

// SetClock overrides the time source used by cleanup.
func (h *Handlers) SetClock(now func() time.Time) { h.now = now }

// SetCleanupBounds overrides the cleanup page size and page count.
func (h *Handlers) SetCleanupBounds(batchSize, maxBatches int) {
	if batchSize > 0 {
		h.batchSize = batchSize
	}
	if maxBatches > 0 {
		h.maxBatches = maxBatches
	}
}

// RunDailyDetection emits a birthday_today intent for every profile whose
// birthday falls on today.
func (h *Handlers) RunDailyDetection(ctx context.Context, today recurrence.Date) (domain.Report, error) {
	return h.emitFor(ctx, today, domain.IntentBirthdayToday)
}

// RunReminderFanout emits a birthday_tomorrow intent for every profile
// whose birthday falls on the day after today.
func (h *Handlers) RunReminderFanout(ctx context.Context, today recurrence.Date) (domain.Report, error) {
	return h.emitFor(ctx, today.AddDays(1), domain.IntentBirthdayTomorrow)
}

func (h *Handlers) emitFor(ctx context.Context, date recurrence.Date, kind domain.IntentKind) (domain.Report, error) {
	var report domain.Report
	profiles, err := h.births.OnDate(ctx, date)
	if err != nil {
		return report, fmt.Errorf("birthdays on %s: %w", date, err)
	}

	for _, p := range profiles {
		intent := domain.Intent{
			ID:        uuid.New().String(),
			Kind:      kind,
			ProfileID: p.UserID,
			Name:      p.Name(),
			OccursOn:  date.String(),
			CreatedAt: h.now(),
		}
		created, err := h.intents.Emit(ctx, intent)
		switch {
		case err != nil:
			report.Fail(fmt.Errorf("emit %s intent for %s: %w", kind, p.UserID, err))
		case created:
			report.Processed++
		default:
			report.Skipped++
		}
	}
	h.log.Info("intents emitted", "kind", kind, "date", date.String(),
		"emitted", report.Processed, "already_emitted", report.Skipped, "failed", report.Failed)
	return report, nil
}

// RunCleanup deletes media payloads of wishes created more than
// retentionDays ago and clears their references. Work is done in bounded
// pages; a media-store failure on one wish is recorded and the wish keeps
// its reference so a later run retries it.
func (h *Handlers) RunCleanup(ctx context.Context, retentionDays int) (domain.Report, error) {
	var report domain.Report
	if !h.CleanupConfigured() {
		return report, domain.Validationf("cleanup is not configured")
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := h.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	cursor := ""
	for batch := 0; batch < h.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		page, err := h.wishes.ListExpiredMedia(ctx, cutoff, cursor, h.batchSize)
		if err != nil {
			if batch == 0 {
				return report, fmt.Errorf("list expired media: %w", err)
			}
			report.Fail(fmt.Errorf("list expired media after %s: %w", cursor, err))
			break
		}

		for _, w := range page {
			cursor = w.ID
			if err := h.media.Delete(ctx, w.MediaRef); err != nil {
				report.Fail(fmt.Errorf("delete media of wish %s: %w", w.ID, err))
				continue
			}
			if err := h.wishes.ClearMedia(ctx, w.ID, w.MediaRef); err != nil && !errors.Is(err, domain.ErrConflict) {
				report.Fail(fmt.Errorf("clear media of wish %s: %w", w.ID, err))
				continue
			}
			report.Processed++
		}
		if len(page) < h.batchSize {
			break
		}
	}

	h.log.Info("media cleanup done", "retention_days", retentionDays,
		"removed", report.Processed, "failed", report.Failed)
	return report, nil
}
