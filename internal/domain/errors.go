package domain

import "errors"

var (
	// ErrNotFound is returned when a natural key has never been loaded.
	ErrNotFound = errors.New("natural key not found")

	// ErrNoActiveVersion is returned by the Type 2 path when no row with
	// est_actif = true exists for the requested commune code.
	ErrNoActiveVersion = errors.New("no active version for natural key")

	// ErrNoChange signals that the submitted value equals the current one;
	// the dimension is left untouched.
	ErrNoChange = errors.New("value unchanged")

	// ErrAlreadyResolved is returned when trying to resolve an error-log
	// entry whose est_resolu flag is already set. The flag transitions
	// false -> true exactly once.
	ErrAlreadyResolved = errors.New("error entry already resolved")
)
