// Package services implements the match-and-booking lifecycle: candidate
// suggestion, the match request state machine, the booking state machine
// derived from an accepted match, ratings, and booking analytics.
//
// This file centralizes the service-level error values so that they can be
// consistently returned by service methods and checked by callers. Storage
// errors are returned unwrapped; callers treat anything not listed here as an
// internal failure.
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/table-for-two/internal/repo"
)

var (
	// ErrInvalidRequest is returned for malformed or self-referential input.
	// Nothing is written when it is returned.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthorized is returned when the actor is not a party to the
	// resource.
	ErrUnauthorized = errors.New("not a party to this resource")

	// ErrNotFound is the common parent of the specific not-found errors below.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRequest is returned when an idempotency key is already taken.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrInvalidStatus is returned for an unknown status value or a transition
	// the state machine does not allow.
	ErrInvalidStatus = errors.New("invalid status")
)

// Not-found errors per resource. Each satisfies errors.Is(err, ErrNotFound).
var (
	ErrMatchNotFound      = fmt.Errorf("match %w", ErrNotFound)
	ErrBookingNotFound    = fmt.Errorf("booking %w", ErrNotFound)
	ErrRestaurantNotFound = fmt.Errorf("restaurant %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
)

// Retry tells a caller what to do after a failed operation.
type Retry int

const (
	// RetryNever: the request cannot succeed as issued.
	RetryNever Retry = iota
	// RetryAfterCorrection: the request may succeed once the caller fixes it
	// (a different slot, a legal status).
	RetryAfterCorrection
	// RetryWithBackoff: a transient failure; the same request is safe to repeat.
	RetryWithBackoff
)

// Retryable classifies err. A nil error returns RetryNever.
func Retryable(err error) Retry {
	switch {
	case err == nil:
		return RetryNever
	case errors.Is(err, ErrDuplicateRequest), errors.Is(err, ErrInvalidStatus):
		return RetryAfterCorrection
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidRequest):
		return RetryNever
	default:
		return RetryWithBackoff
	}
}

// invalid wraps ErrInvalidRequest with the detail a caller needs to fix the
// request.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate reports unique-constraint violations using the repo
// classifier.
func isDuplicate(err error) bool { return repo.IsUniqueViolation(err) }
