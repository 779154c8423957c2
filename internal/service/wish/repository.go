package wish

import (
	"context"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// Repository defines the data access contract for wishes.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single wish. Returns an error wrapping domain.ErrNotFound
	// if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Wish, error)

	// Create inserts a new wish.
	Create(ctx context.Context, w *domain.Wish) error

	// Transition applies t atomically only if the stored status still equals
	// t.From. It returns ErrStaleStatus (wrapping domain.ErrConflict) when the
	// guard fails and domain.ErrNotFound when the wish is absent.
	Transition(ctx context.Context, t domain.WishTransition) error
}

// Enqueuer records the intent to dispatch a scheduled wish.
type Enqueuer interface {
	Enqueue(ctx context.Context, wishID string, deliverAt time.Time) error
}

// Notifier delivers a wish through the external transport.
type Notifier interface {
	Send(ctx context.Context, w *domain.Wish) error
}
