package errors

import "errors"

var (
	ErrNotFound = errors.New("allocation record not found")

	ErrInvalidID = errors.New("invalid allocation record ID format")

	ErrAlreadyReleased = errors.New("allocation record already released")

	// ErrActiveAllocationExists is returned by Append when the slot already has
	// a record without releasedAt.
	ErrActiveAllocationExists = errors.New("slot already has an active allocation")

	// ErrSchemaNotMigrated is returned by VerifySchema when the store lacks the
	// index that keeps one active record per slot.
	ErrSchemaNotMigrated = errors.New("allocation store schema is not migrated")
)
