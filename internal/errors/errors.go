package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Authentication errors
	ErrAuthentication = errors.New("authentication failed")
	ErrNoSession      = errors.New("no active session")

	// Store errors
	ErrStorage           = errors.New("session store error")
	ErrStorageCorruption = errors.New("stored session record is corrupted")

	// Record errors
	ErrInvalidRecord = errors.New("invalid session record")

	// Identity provider handoff errors
	ErrProfileFetch         = errors.New("canonical profile fetch failed")
	ErrMissingHandoffParams = errors.New("missing identity handoff parameters")
	ErrUnsupportedProvider  = errors.New("unsupported identity provider")
)

// New returns an error with the given text
func New(text string) error {
	return errors.New(text)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Join combines errors so both remain matchable with Is
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
