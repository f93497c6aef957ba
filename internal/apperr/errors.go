// Package apperr holds the application-level error taxonomy shared by the
// service, API and MCP layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotInitialized is returned when an operation needs a bound repository
	// and none has been opened yet.
	ErrNotInitialized = errors.New("repository not initialized")

	ErrFutureDate     = errors.New("date is in the future")
	ErrMalformedInput = errors.New("malformed input")
)
