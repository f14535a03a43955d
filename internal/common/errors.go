// Package common holds the error vocabulary, logging helpers and retry loop
// shared by every cardwise package.
package common

import (
	"errors"
)

// Sentinels callers match with errors.Is.
var (
	// Store
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrNoJob          = errors.New("no queued job")

	// Pipeline
	ErrNoTransactions    = errors.New("no transactions in session")
	ErrCatchAllMissing   = errors.New("catch-all category missing from taxonomy")
	ErrOracleUnavailable = errors.New("merchant oracle unavailable")

	// Configuration
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError pairs an internal cause with a message fit for an end user.
type UserError struct {
	Err         error
	UserMessage string
}

// NewUserError wraps err behind a user-facing message.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.UserMessage
	}
	return e.UserMessage + ": " + e.Err.Error()
}

func (e *UserError) Unwrap() error { return e.Err }

// UserMessage returns the outermost UserError in err's chain, or err's own
// text when there is none. Failed jobs store this string.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Error()
	}
	return err.Error()
}

// FatalError marks a data-integrity or configuration problem that Retry never
// repeats.
type FatalError struct {
	Err error
}

// NewFatalError wraps err as fatal.
func NewFatalError(err error) error { return &FatalError{Err: err} }

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether a FatalError appears anywhere in err's chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
