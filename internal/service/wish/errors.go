package wish

import (
	"fmt"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// Sentinel errors for the wish service layer. Each wraps a domain kind.
var (
	ErrScheduleNotFuture = fmt.Errorf("%w: scheduled time must be in the future", domain.ErrValidation)
	ErrNotDraft          = fmt.Errorf("%w: only draft wishes can be scheduled", domain.ErrValidation)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", domain.ErrConflict)
	ErrStaleStatus       = fmt.Errorf("%w: wish status changed concurrently", domain.ErrConflict)
	ErrNoNotifier        = fmt.Errorf("%w: no notifier configured", domain.ErrValidation)
)
