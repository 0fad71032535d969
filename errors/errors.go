// Package errors provides error handling for dirsvc.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Marking errors with a sentinel while keeping their message
//
// Usage:
//
//	// Wrap with context
//	if err := store.Put(ctx, entities); err != nil {
//	    return errors.Wrap(err, "failed to import fixtures")
//	}
//
//	// Keep the message, make it match a sentinel
//	return errors.Mark(err, errors.ErrBackendUnavailable)
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
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf    = crdb.AssertionFailedf
	IsAssertionFailure  = crdb.IsAssertionFailure
	HasAssertionFailure = crdb.HasAssertionFailure
)

// Sentinel errors for the query pipeline.
// Check them with errors.Is(); mark or wrap them to add context.
var (
	// ErrMissingArgument indicates a required request argument was not supplied
	ErrMissingArgument = New("missing required argument")

	// ErrInvalidArgument indicates a request argument of the wrong type
	ErrInvalidArgument = New("invalid argument")

	// ErrBackendUnavailable indicates the directory backend could not be reached or initialized
	ErrBackendUnavailable = New("directory backend unavailable")

	// ErrUnsupportedColumnType indicates a column kind other than text or boolean.
	// Seeing it means an internal contract was broken, not that the caller sent bad input.
	ErrUnsupportedColumnType = New("unsupported column type")

	// ErrLabelCollision indicates column labels that an envelope cannot represent
	ErrLabelCollision = New("column label collision")

	// ErrUnknownVersion indicates an envelope version with no registered codec
	ErrUnknownVersion = New("unknown envelope version")

	// ErrMalformedEnvelope indicates a payload that does not decode as a table
	ErrMalformedEnvelope = New("malformed table envelope")
)

// IsMissingArgumentError checks if an error is or wraps ErrMissingArgument
func IsMissingArgumentError(err error) bool {
	return err != nil && Is(err, ErrMissingArgument)
}

// IsBackendUnavailableError checks if an error is or wraps ErrBackendUnavailable
func IsBackendUnavailableError(err error) bool {
	return err != nil && Is(err, ErrBackendUnavailable)
}

// NewMissingArgumentError reports a missing request argument by name
func NewMissingArgumentError(name string) error {
	return Wrapf(ErrMissingArgument, "%s", name)
}

// NewUnsupportedColumnTypeError reports an unknown column kind as an assertion failure
// that still matches ErrUnsupportedColumnType.
func NewUnsupportedColumnTypeError(label string, kind interface{}) error {
	return Mark(AssertionFailedf("column %q has unsupported kind %v", label, kind), ErrUnsupportedColumnType)
}
