// Package common defines shared constants and sentinel errors used across
// the suggestion box server, its repositories and the admin CLI. Callers
// should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Error kinds. Every error returned by a service unwraps to exactly one
	// of these; the request layer maps them to transport status codes.
	ErrorInvalidInput    = errors.New("invalid input")
	ErrorNotFound        = errors.New("not found")
	ErrorUnauthenticated = errors.New("unauthenticated")
	ErrorForbidden       = errors.New("forbidden")
	ErrorConflict        = errors.New("conflict")
	ErrorQuotaExceeded   = errors.New("quota exceeded")
	ErrorUnavailable     = errors.New("storage unavailable")

	// Validation errors.
	ErrInvalidOwnerID     = &KindError{Kind: ErrorInvalidInput, Msg: "owner id must match [a-z0-9_-]{3,32}"}
	ErrInvalidPassword    = &KindError{Kind: ErrorInvalidInput, Msg: "password must be at least 6 characters"}
	ErrInvalidDisplayName = &KindError{Kind: ErrorInvalidInput, Msg: "display name must be at most 40 characters"}
	ErrInvalidContent     = &KindError{Kind: ErrorInvalidInput, Msg: "content must be 1-200 characters"}
	ErrInvalidStatus      = &KindError{Kind: ErrorInvalidInput, Msg: "bad status"}
	ErrInvalidRange       = &KindError{Kind: ErrorInvalidInput, Msg: "progress must be 0-100"}
	ErrInvalidKeepLimit   = &KindError{Kind: ErrorInvalidInput, Msg: "keep limit must be positive"}

	// Auth errors.
	ErrorUnauthorized  = &KindError{Kind: ErrorUnauthenticated, Msg: "unauthorized"}
	ErrSessionExpired  = &KindError{Kind: ErrorUnauthenticated, Msg: "session expired"}
	ErrInvalidReceipt  = &KindError{Kind: ErrorUnauthenticated, Msg: "invalid receipt"}
	ErrReceiptExpired  = &KindError{Kind: ErrorUnauthenticated, Msg: "receipt expired"}
	ErrSignupsDisabled = &KindError{Kind: ErrorForbidden, Msg: "signups are closed"}
	ErrNotOwner        = &KindError{Kind: ErrorForbidden, Msg: "forbidden"}
	ErrNotAdmin        = &KindError{Kind: ErrorForbidden, Msg: "admin only"}

	// Lifecycle errors.
	ErrOwnerNotFound        = &KindError{Kind: ErrorNotFound, Msg: "owner not found"}
	ErrLetterNotFound       = &KindError{Kind: ErrorNotFound, Msg: "letter not found"}
	ErrInboxEmpty           = &KindError{Kind: ErrorNotFound, Msg: "no letters in inbox"}
	ErrOwnerExists          = &KindError{Kind: ErrorConflict, Msg: "duplicate"}
	ErrNotInProgress        = &KindError{Kind: ErrorConflict, Msg: "letter is not in progress"}
	ErrTransitionNotAllowed = &KindError{Kind: ErrorConflict, Msg: "status transition not allowed"}
	ErrDrawContention       = &KindError{Kind: ErrorConflict, Msg: "draw lost to a concurrent update"}
)

var kinds = []error{
	ErrorInvalidInput,
	ErrorNotFound,
	ErrorUnauthenticated,
	ErrorForbidden,
	ErrorConflict,
	ErrorQuotaExceeded,
	ErrorUnavailable,
}

// KindError is an error with a caller-facing message that belongs to one of
// the error kinds above.
type KindError struct {
	Kind error
	Msg  string
}

func (e *KindError) Error() string { return e.Msg }

func (e *KindError) Unwrap() error { return e.Kind }

// QuotaExceeded reports that an owner already holds limit active letters.
func QuotaExceeded(limit int) error {
	return &KindError{Kind: ErrorQuotaExceeded, Msg: fmt.Sprintf("limit %d", limit)}
}

// Unavailable wraps a storage failure so that it classifies as
// ErrorUnavailable while keeping the original cause in the chain.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrorUnavailable, op, err)
}

// KindOf returns the error kind err belongs to, or nil when err is nil or
// does not belong to any known kind.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
