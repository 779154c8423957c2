package domain

import (
	"errors"
	"time"
)

// Names of the periodic jobs.
const (
	JobDailyDetection = "daily-birthday-detection"
	JobReminderFanout = "daily-reminder-fanout"
	JobWeeklyCleanup  = "weekly-cleanup"
)

// JobWatermark records the last period a periodic job completed, so a
// restart within the same period does not run it again.
type JobWatermark struct {
	JobName     string    `json:"job_name" db:"job_name"`
	Period      string    `json:"period" db:"period"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}

// IntentKind is the type of notification intent a job emits.
type IntentKind string

const (
	IntentBirthdayToday    IntentKind = "birthday_today"
	IntentBirthdayTomorrow IntentKind = "birthday_tomorrow"
)

// Intent is a request for the notification layer to tell someone about a
// birthday. (Kind, ProfileID, OccursOn) is unique so re-emission is a no-op.
type Intent struct {
	ID        string     `json:"id" db:"id"`
	Kind      IntentKind `json:"kind" db:"kind"`
	ProfileID string     `json:"profile_id" db:"profile_id"`
	Name      string     `json:"name" db:"name"`
	OccursOn  string     `json:"occurs_on" db:"occurs_on"` // YYYY-MM-DD
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Report is the outcome of a batch operation. Batches never abort on one
// bad record; failures are counted and collected instead.
type Report struct {
	Processed int     `json:"processed"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	Errors    []error `json:"-"`
}

// Fail records one failed record.
func (r *Report) Fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}

// Merge folds another report into r.
func (r *Report) Merge(o Report) {
	r.Processed += o.Processed
	r.Failed += o.Failed
	r.Skipped += o.Skipped
	r.Errors = append(r.Errors, o.Errors...)
}

// Err joins the collected errors, or returns nil when there are none.
func (r *Report) Err() error {
	return errors.Join(r.Errors...)
}

// ErrorStrings renders the collected errors for JSON responses and logs.
func (r *Report) ErrorStrings() []string {
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}
