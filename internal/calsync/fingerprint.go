package calsync

import (
	"time"

	"taskmirror/internal/model"
	"taskmirror/pkg/fingerprint"
)

// unitFingerprint digests the sync-relevant fields of a unit. Two units
// with equal fingerprints render identical calendar events, so an equal
// fingerprint on the stored record means the external event needs no write.
func unitFingerprint(u model.SchedulableUnit) string {
	fields := map[string]string{
		"title":  u.Title,
		"notes":  u.Notes,
		"date":   u.Date.Format("2006-01-02"),
		"status": u.Status,
	}
	if u.ScheduledAt != nil {
		fields["scheduled_at"] = u.ScheduledAt.UTC().Format(time.RFC3339)
	}
	return fingerprint.Compute(fields)
}
