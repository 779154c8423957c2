package group

import (
	"fmt"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// Sentinel errors for the group service layer. Each wraps a domain kind.
var (
	ErrCodesExhausted        = fmt.Errorf("%w: invitation code attempts exhausted", domain.ErrResourceExhausted)
	ErrSelfContribution      = fmt.Errorf("%w: recipient cannot contribute to their own group wish", domain.ErrValidation)
	ErrGroupClosed           = fmt.Errorf("%w: group wish is no longer active", domain.ErrValidation)
	ErrAnonymousNotAllowed   = fmt.Errorf("%w: group wish does not allow anonymous contributions", domain.ErrValidation)
	ErrDuplicateContribution = fmt.Errorf("%w: contributor already contributed to this group wish", domain.ErrConflict)
)
