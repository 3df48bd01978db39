// Package apperrors defines the error taxonomy shared across the engine core.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested project, schema, session or intent
	// list does not exist. Distinct from ErrStoreUnavailable: callers need to
	// know "nothing there" vs "couldn't check".
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable indicates the context store backend is unreachable
	// or failed its liveness check.
	ErrStoreUnavailable = errors.New("context store unavailable")

	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")

	// ErrUpstreamEngine indicates the external SQL engine rejected or failed
	// the statement.
	ErrUpstreamEngine = errors.New("upstream engine error")

	// ErrUnsupportedDialect indicates a project dialect the router cannot map
	// to a physical engine.
	ErrUnsupportedDialect = errors.New("unsupported dialect")
)

// Validation wraps a human-readable message into an ErrValidation error.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream wraps an engine failure into an ErrUpstreamEngine error, keeping
// the engine's message for the caller.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUpstreamEngine, err.Error())
}

// Code maps an error to a stable category string for API responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrUnsupportedDialect):
		return "unsupported_dialect"
	case errors.Is(err, ErrUpstreamEngine):
		return "engine_error"
	default:
		return "internal_error"
	}
}
