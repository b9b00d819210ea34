// Package apperr defines the error kinds surfaced by directory operations.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAuthenticationRequired is returned when no active principal is bound to the request.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrForbidden is returned when the principal lacks the capability for the operation.
	ErrForbidden = errors.New("admin access required")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountDisabled is returned when a deactivated account tries to log in.
	ErrAccountDisabled = errors.New("account has been deactivated, contact an administrator")
	// ErrSelfDeletion is returned when a principal tries to delete its own account.
	ErrSelfDeletion = errors.New("you cannot delete your own account")
	// ErrNotFound is returned when the addressed entity does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports malformed input or a uniqueness conflict on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// WeakPasswordError reports every password policy rule the candidate failed.
type WeakPasswordError struct {
	Reasons []string
}

func (e *WeakPasswordError) Error() string {
	return "password does not meet security requirements: " + strings.Join(e.Reasons, "; ")
}

// Unwrap lets errors.As match a WeakPasswordError as a ValidationError on the password field.
func (e *WeakPasswordError) Unwrap() error {
	return &ValidationError{Field: "password", Message: strings.Join(e.Reasons, "; ")}
}

// AccountLockedError is returned while a lockout window is open.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return "account is locked due to too many failed login attempts, try again later"
}

// PersistenceError wraps a store failure. The whole operation, audit entry included, was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err unless it is already classified.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Classified reports whether err already belongs to one of the kinds in this package.
func Classified(err error) bool {
	var (
		ve *ValidationError
		le *AccountLockedError
		pe *PersistenceError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &le), errors.As(err, &pe):
		return true
	case errors.Is(err, ErrAuthenticationRequired),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrSelfDeletion),
		errors.Is(err, ErrNotFound):
		return true
	default:
		return false
	}
}
