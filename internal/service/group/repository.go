package group

import (
	"context"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// Repository defines the data access contract for group wishes and their
// contributions. Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a group wish. Returns an error wrapping domain.ErrNotFound
	// if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.GroupWish, error)

	// GetByCode returns the group wish holding an invitation code.
	GetByCode(ctx context.Context, code string) (*domain.GroupWish, error)

	// CodeExists reports whether an invitation code is already taken.
	CodeExists(ctx context.Context, code string) (bool, error)

	// Create inserts a group wish. A taken invitation code yields an error
	// wrapping domain.ErrConflict.
	Create(ctx context.Context, g *domain.GroupWish) error

	// AddContribution inserts a contribution. An existing (group,
	// contributor) pair yields an error wrapping domain.ErrConflict.
	AddContribution(ctx context.Context, c *domain.Contribution) error

	// HasContribution reports whether contributorID already contributed.
	HasContribution(ctx context.Context, groupID, contributorID string) (bool, error)

	// ListContributions returns a group's contributions oldest first.
	ListContributions(ctx context.Context, groupID string) ([]domain.Contribution, error)
}
