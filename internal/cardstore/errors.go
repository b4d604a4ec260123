package cardstore

import "errors"

// Errors returned by the cardstore package.
var (
	// ErrNotFound is returned when no revision matches.
	ErrNotFound = errors.New("cardstore: revision not found")

	// ErrLayoutMismatch is returned when a revision's layout differs from the
	// controller's. Family boundaries are fixed for the process lifetime.
	ErrLayoutMismatch = errors.New("cardstore: layout mismatch")
)
