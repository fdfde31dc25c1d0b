// Package errs holds the error taxonomy shared by every feature. Callers wrap
// these sentinels with fmt.Errorf("%w: ...") and test them with errors.Is.
package errs

import "errors"

var (
	// ErrValidation marks malformed or missing request input.
	ErrValidation = errors.New("validation error")
	// ErrNotAuthorized marks a tenant mismatch or a set whose flags forbid the operation.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrSchemaMismatch marks a nested permission payload missing a required leaf.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrMigrationIncomplete marks a delete aborted because a dependent seat could not be migrated.
	ErrMigrationIncomplete = errors.New("migration incomplete")
	// ErrStorageFailure marks an opaque failure from a storage collaborator.
	ErrStorageFailure = errors.New("storage failure")
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness or state conflict.
	ErrConflict = errors.New("conflict")
)
