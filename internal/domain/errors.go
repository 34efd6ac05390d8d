// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers. Adapters wrap them
// with %w so both the category and the underlying cause stay inspectable.
var (
	// ErrNotFound indicates the entry file does not exist.
	ErrNotFound = errors.New("entry not found")

	// ErrAuthenticationFailed covers both a wrong password and a corrupted or
	// tampered blob; callers cannot tell the two apart.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrIO indicates a filesystem failure (permissions, disk full, bad path).
	ErrIO = errors.New("i/o error")

	// ErrAlreadyExists indicates a create collided with an existing entry.
	ErrAlreadyExists = errors.New("entry already exists")

	// ErrInvalidTarget indicates a migration destination that contains, or is
	// contained by, the source location.
	ErrInvalidTarget = errors.New("invalid migration target")

	// ErrPartialFailure indicates a rekey or migration stopped partway.
	ErrPartialFailure = errors.New("partial failure")

	// ErrSettingsNotPersisted indicates files were relocated but the new
	// location could not be saved.
	ErrSettingsNotPersisted = errors.New("settings not persisted")

	// ErrInvalidFileName indicates a name that is not a canonical entry file name.
	ErrInvalidFileName = errors.New("invalid entry file name")

	// ErrInvalidDate indicates a date string that does not denote a calendar day.
	ErrInvalidDate = errors.New("invalid date")
)
