// Package errors provides error handling for softwaremap.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// It also owns the pipeline's error taxonomy. Every failure a caller needs to
// branch on is one of the sentinels below, wrapped with context:
//
//	if errors.Is(err, errors.ErrEndpointUnreachable) {
//	    // schedule a retry
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	CombineErrors = crdb.CombineErrors
)

// Generic sentinels
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")
)

// Pipeline taxonomy.
//
// ErrEndpointUnreachable is transient and aborts the current query batch.
// ErrMalformedResult and ErrInvalidDateFormat are per-row: the row is
// discarded and the batch continues. ErrUnknownEntity is a caller bug and
// fails only the call that raised it.
var (
	ErrEndpointUnreachable = New("knowledge-base endpoint unreachable")
	ErrMalformedResult     = New("malformed query result")
	ErrInvalidDateFormat   = New("invalid date format")
	ErrUnknownEntity       = New("unknown entity")
)

// IsRetryable reports whether err is worth retrying on a later schedule.
func IsRetryable(err error) bool {
	return err != nil && Is(err, ErrEndpointUnreachable)
}

// IsPerRowError reports whether err concerns a single row or observation
// and should be skipped rather than abort a batch.
func IsPerRowError(err error) bool {
	return err != nil && IsAny(err, ErrMalformedResult, ErrInvalidDateFormat)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsUnknownEntityError checks if an error is or wraps ErrUnknownEntity
func IsUnknownEntityError(err error) bool {
	return err != nil && Is(err, ErrUnknownEntity)
}

// NewUnknownEntityError reports a reference to an entity that was never observed
func NewUnknownEntityError(entityID string) error {
	return WithHint(
		Wrapf(ErrUnknownEntity, "entity %q", entityID),
		"entities are created by `swmap ix dates` or `swmap ix software`; check the ID spelling (e.g. Q7397)",
	)
}

// NewMalformedResultError creates a malformed-result error with a formatted message
func NewMalformedResultError(format string, args ...interface{}) error {
	return Wrap(ErrMalformedResult, Newf(format, args...).Error())
}

// NewInvalidDateError creates an invalid-date error for a raw date literal
func NewInvalidDateError(raw string, cause error) error {
	err := Wrapf(ErrInvalidDateFormat, "cannot parse %q", raw)
	if cause != nil {
		err = WithDetail(err, cause.Error())
	}
	return err
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}
