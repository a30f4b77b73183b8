package calsync

import "errors"

var (
	// ErrSyncDisabled means the user has no enabled calendar integration.
	// Callers stop the current batch for that user instead of retrying.
	ErrSyncDisabled = errors.New("calendar sync disabled")

	// ErrCredentialsRejected means the stored credentials can never yield
	// a working client again. The service disables the integration when it
	// sees this.
	ErrCredentialsRejected = errors.New("calendar credentials rejected")

	ErrFailedToSync = errors.New("failed to sync unit")
)
