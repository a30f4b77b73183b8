package model

import "time"

// UnitKind distinguishes the two schedulable unit types.
type UnitKind string

const (
	UnitKindTask     UnitKind = "task"
	UnitKindInstance UnitKind = "instance"
)

// UnitRef identifies exactly one schedulable unit.
type UnitRef struct {
	Kind UnitKind
	ID   string
}

// Key returns the stable string form used for keyed locks and cache keys.
func (u UnitRef) Key() string {
	return string(u.Kind) + ":" + u.ID
}

// SchedulableUnit is one calendar-facing item: either a non-recurring task
// or a task instance, flattened for the agenda view and the sync paths.
type SchedulableUnit struct {
	Ref         UnitRef
	UserID      string
	Title       string
	Notes       string
	Date        time.Time
	ScheduledAt *time.Time
	Status      string
	CreatedAt   time.Time
}

// SyncRecord maps one schedulable unit to one external calendar event.
// (UnitKind, UnitID) is unique. A record whose unit no longer exists is an
// orphan and is removed by the reconciliation sweep.
type SyncRecord struct {
	ID          string
	UserID      string
	UnitKind    UnitKind
	UnitID      string
	EventID     string
	Fingerprint string
	SyncedAt    time.Time
}

// Ref returns the unit reference of the record.
func (r SyncRecord) Ref() UnitRef {
	return UnitRef{Kind: r.UnitKind, ID: r.UnitID}
}

// CalendarIntegration is the per-user external calendar credential row.
// The lock columns implement the advisory lease used during token refresh.
type CalendarIntegration struct {
	UserID         string
	CalendarID     string
	SyncEnabled    bool
	DisabledReason string

	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time

	LockOwner      string
	LockAcquiredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenValid reports whether the access token is still usable with the
// given safety margin.
func (ci CalendarIntegration) TokenValid(now time.Time, margin time.Duration) bool {
	return ci.AccessToken != "" && now.Add(margin).Before(ci.TokenExpiry)
}
