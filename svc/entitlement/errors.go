package entitlement

import "errors"

var (
	// ErrNotFound is returned when no entitlement exists for a user.
	ErrNotFound = errors.New("entitlement not found")

	// ErrVersionConflict is returned by UpdateIf when the record changed
	// since it was read. Callers re-read and retry.
	ErrVersionConflict = errors.New("entitlement version conflict")

	// ErrTransientFailure is returned when conflict retries are exhausted.
	// The caller may safely retry the whole operation.
	ErrTransientFailure = errors.New("entitlement update temporarily failed")
)
