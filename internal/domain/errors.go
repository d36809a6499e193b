package domain

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound covers unknown entities and entities owned by someone
	// else: ownership failures must be indistinguishable from absence.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds rejects a debit that would take the source
	// balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflictingReplay is the same actor reusing an idempotency key
	// with a different request.
	ErrConflictingReplay = errors.New("idempotency key was already used with a different request")

	// ErrKeyAlreadyUsed is an idempotency key held by a different actor.
	// Deliberately vague: it must not reveal whose key it is.
	ErrKeyAlreadyUsed = errors.New("idempotency key was already used")

	// ErrDuplicate is a store-level unique constraint violation.
	ErrDuplicate = errors.New("duplicate row")

	// ErrInvalidCursor is a pagination token that does not decode.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken rejects registration with an email already in use.
	ErrEmailTaken = errors.New("email already registered")
)

// ValidationError is a caller mistake: bad currency, self transfer, malformed
// idempotency key. Reported back, nothing retried, no side effects.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Client-generated idempotency keys: UUIDs and similar opaque tokens.
var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ValidateIdempotencyKey rejects absent or malformed keys before any side
// effect is taken.
func ValidateIdempotencyKey(key string) error {
	if key == "" {
		return Validationf("idempotency key is required")
	}
	if !idempotencyKeyPattern.MatchString(key) {
		return Validationf("idempotency key must be 1-128 characters of [A-Za-z0-9._:-]")
	}
	return nil
}
