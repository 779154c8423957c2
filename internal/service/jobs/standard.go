package jobs

import (
	"context"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/recurrence"
)

// Schedule holds the trigger times of the standard jobs.
type Schedule struct {
	// DetectionAt is the offset from midnight of daily detection.
	DetectionAt time.Duration
	// ReminderAt is the offset from midnight of the reminder fan-out.
	ReminderAt time.Duration
	// CleanupDay and CleanupAt place the weekly cleanup within the week.
	CleanupDay    time.Weekday
	CleanupAt     time.Duration
	RetentionDays int
}

// DefaultSchedule runs detection at midnight, reminders at 08:00 and
// cleanup on Sunday at 02:00 with a 90 day retention.
func DefaultSchedule() Schedule {
	return Schedule{
		DetectionAt:   0,
		ReminderAt:    8 * time.Hour,
		CleanupDay:    time.Sunday,
		CleanupAt:     2 * time.Hour,
		RetentionDays: DefaultRetentionDays,
	}
}

// weekOffset converts a weekday and time of day into an offset from Monday
// midnight.
func weekOffset(day time.Weekday, at time.Duration) time.Duration {
	days := (int(day) + 6) % 7
	return time.Duration(days)*24*time.Hour + at
}

// RegisterStandard registers the daily jobs on r, and the weekly cleanup
// when h has a media store to clean.
func RegisterStandard(r *Runner, h *Handlers, s Schedule) {
	loc := r.loc
	r.Register(Job{
		Name:   domain.JobDailyDetection,
		Period: Daily,
		At:     s.DetectionAt,
		Handler: func(ctx context.Context, now time.Time) (domain.Report, error) {
			return h.RunDailyDetection(ctx, recurrence.TodayIn(now, loc))
		},
	})
	r.Register(Job{
		Name:   domain.JobReminderFanout,
		Period: Daily,
		At:     s.ReminderAt,
		Handler: func(ctx context.Context, now time.Time) (domain.Report, error) {
			return h.RunReminderFanout(ctx, recurrence.TodayIn(now, loc))
		},
	})
	if !h.CleanupConfigured() {
		return
	}
	r.Register(Job{
		Name:   domain.JobWeeklyCleanup,
		Period: Weekly,
		At:     weekOffset(s.CleanupDay, s.CleanupAt),
		Handler: func(ctx context.Context, _ time.Time) (domain.Report, error) {
			return h.RunCleanup(ctx, s.RetentionDays)
		},
	})
}
