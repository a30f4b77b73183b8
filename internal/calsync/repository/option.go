package repository

import (
	"time"

	"taskmirror/internal/model"
)

// CreateSyncRecordOptions holds parameters for inserting a sync record.
type CreateSyncRecordOptions struct {
	UserID      string
	Ref         model.UnitRef
	EventID     string
	Fingerprint string
}

// UpdateSyncRecordOptions updates the event id and fingerprint of an
// existing record.
type UpdateSyncRecordOptions struct {
	Ref         model.UnitRef
	EventID     string
	Fingerprint string
}

// UpsertIntegrationOptions creates or replaces a user's integration row.
type UpsertIntegrationOptions struct {
	UserID       string
	CalendarID   string
	SyncEnabled  bool
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
}

// SaveTokenOptions persists a refreshed credential.
type SaveTokenOptions struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
}
