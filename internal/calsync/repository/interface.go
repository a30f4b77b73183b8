package repository

import (
	"context"
	"time"

	"taskmirror/internal/model"
)

// Repository is the composed interface for the sync domain data store.
type Repository interface {
	SyncRecordRepository
	IntegrationRepository
}

// SyncRecordRepository defines data access for unit-to-event mappings.
// Not-found is reported as a zero-value SyncRecord (ID == ""), not an error.
type SyncRecordRepository interface {
	// CreateSyncRecord inserts a record. A (unit_kind, unit_id) conflict
	// returns ErrDuplicateRecord so the caller can downgrade its create
	// to an update; the existing row is authoritative.
	CreateSyncRecord(ctx context.Context, opt CreateSyncRecordOptions) (model.SyncRecord, error)

	GetSyncRecord(ctx context.Context, ref model.UnitRef) (model.SyncRecord, error)
	ListSyncRecords(ctx context.Context, userID string) ([]model.SyncRecord, error)
	UpdateSyncRecord(ctx context.Context, opt UpdateSyncRecordOptions) error
	DeleteSyncRecord(ctx context.Context, ref model.UnitRef) error
}

// IntegrationRepository defines data access for per-user calendar
// credentials, including the advisory refresh lease.
type IntegrationRepository interface {
	GetIntegration(ctx context.Context, userID string) (model.CalendarIntegration, error)
	UpsertIntegration(ctx context.Context, opt UpsertIntegrationOptions) error

	// ListSyncEnabledUserIDs returns users with an enabled integration.
	ListSyncEnabledUserIDs(ctx context.Context) ([]string, error)

	// DisableIntegration turns sync off and records the reason. Used when
	// credentials fail irrecoverably; surfaced on the next settings read.
	DisableIntegration(ctx context.Context, userID, reason string) error

	// AcquireRefreshLock attempts a compare-and-swap on the lease columns:
	// it succeeds when the lock is free or held since before staleBefore.
	// Non-blocking; returns false when another owner holds a fresh lock.
	AcquireRefreshLock(ctx context.Context, userID, owner string, staleBefore time.Time) (bool, error)

	// ReleaseRefreshLock clears the lease if owner still holds it.
	ReleaseRefreshLock(ctx context.Context, userID, owner string) error

	// SaveToken persists refreshed credentials.
	SaveToken(ctx context.Context, opt SaveTokenOptions) error
}
