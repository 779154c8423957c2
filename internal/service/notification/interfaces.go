package notification

import (
	"context"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// Queue is the durable dispatch queue. Implementations must be safe for
// concurrent use by several processes.
type Queue interface {
	// Enqueue upserts the job for wishID so it becomes due at deliverAt.
	Enqueue(ctx context.Context, wishID string, deliverAt time.Time) error

	// ClaimDue returns up to limit jobs with DeliverAt <= now that are not
	// claimed by someone else, and claims them until now+claimTTL.
	ClaimDue(ctx context.Context, now time.Time, limit int, claimTTL time.Duration) ([]domain.DispatchJob, error)

	// Complete removes a job once its wish has been handled.
	Complete(ctx context.Context, jobID string) error

	// Pending counts the jobs not yet completed.
	Pending(ctx context.Context) (int, error)
}

// Lifecycle is the subset of the wish state machine the dispatcher drives.
type Lifecycle interface {
	Get(ctx context.Context, id string) (*domain.Wish, error)
	MarkSent(ctx context.Context, id string, now time.Time) (*domain.Wish, error)
	MarkFailed(ctx context.Context, id, reason string) (*domain.Wish, error)
}

// Notifier delivers a wish through an external transport. Errors wrapping
// domain.ErrPermanent are not retried.
type Notifier interface {
	Send(ctx context.Context, w *domain.Wish) error
}
