package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad user input. The caller may retry with corrected input.
	ErrValidation = errors.New("validation failed")
	// ErrWeakPassword is returned when a password does not meet the registration policy.
	ErrWeakPassword = fmt.Errorf("%w: password must be at least 6 characters and contain letters and digits", ErrValidation)
	// ErrDuplicateUsername is returned when registering a username that already exists.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrAuthFailure hides which of username or password was wrong.
	ErrAuthFailure = errors.New("invalid username or password")
	// ErrUserNotFound is returned by credential stores for unknown usernames.
	ErrUserNotFound = errors.New("user not found")
	// ErrPersistence wraps any storage failure.
	ErrPersistence = errors.New("storage failure")
	// ErrImportFormat indicates a malformed import file.
	ErrImportFormat = errors.New("malformed import file")

	// ErrSessionNotFound is returned when a user has no running quiz session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionNotActive is returned when a mutation is attempted outside the active state.
	ErrSessionNotActive = errors.New("quiz session is not accepting changes")
	// ErrSessionClosed is returned for operations on a torn-down session.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrNoQuestions indicates the question bank is empty.
	ErrNoQuestions = errors.New("no questions available")
)

// PersistenceError wraps a driver error so callers can match ErrPersistence
// while the original cause stays reachable.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
