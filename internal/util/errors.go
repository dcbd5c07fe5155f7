package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrConstraint indicates a write violated a uniqueness or foreign-key rule
	ErrConstraint = errors.New("constraint violation")

	// ErrMalformedSeed indicates the seed document cannot be applied as a whole
	ErrMalformedSeed = errors.New("malformed seed document")

	// ErrStorageUnavailable indicates the underlying storage could not be read or written
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
