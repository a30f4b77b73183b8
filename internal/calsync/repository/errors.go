package repository

import "errors"

var (
	ErrFailedToInsert = errors.New("failed to insert record")
	ErrFailedToGet    = errors.New("failed to get record")
	ErrFailedToList   = errors.New("failed to list records")
	ErrFailedToUpdate = errors.New("failed to update record")
	ErrFailedToDelete = errors.New("failed to delete record")

	// ErrDuplicateRecord signals a (unit_kind, unit_id) conflict: another
	// writer already created the sync record for this unit.
	ErrDuplicateRecord = errors.New("sync record already exists for unit")
)
