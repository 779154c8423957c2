package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by every service. Concrete errors wrap one of these so
// callers can branch with errors.Is.
var (
	// ErrValidation is bad input: a past schedule time, a self-contribution.
	ErrValidation = errors.New("validation error")
	// ErrConflict is a state clash: duplicate contribution, double terminal
	// transition, lost compare-and-set.
	ErrConflict = errors.New("conflict")
	// ErrNotFound means a referenced wish, group or profile is absent.
	ErrNotFound = errors.New("not found")
	// ErrTransport is a retryable delivery failure (network, timeout, throttling).
	ErrTransport = errors.New("transport error")
	// ErrPermanent is a non-retryable delivery failure such as a permanently
	// invalid recipient.
	ErrPermanent = errors.New("permanent delivery error")
	// ErrResourceExhausted means a bounded retry budget ran out.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf returns an error wrapping ErrConflict.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundf returns an error wrapping ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Transport wraps err as a retryable delivery failure.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// Permanent wraps err as a non-retryable delivery failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsRetryable reports whether a delivery error may be retried. Anything not
// explicitly marked permanent is treated as transport-level and retried.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrPermanent)
}
