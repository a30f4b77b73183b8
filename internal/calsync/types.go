package calsync

import (
	"context"

	"taskmirror/internal/model"
	"taskmirror/pkg/gcalendar"
)

// CalendarClient is the subset of the external calendar API the sync paths
// rely on. *gcalendar.Client satisfies it; tests substitute fakes.
type CalendarClient interface {
	InsertEvent(ctx context.Context, req gcalendar.EventRequest) (gcalendar.Event, error)
	UpdateEvent(ctx context.Context, eventID string, req gcalendar.EventRequest) (gcalendar.Event, error)
	DeleteEvent(ctx context.Context, calID, eventID string) error
}

// ClientProvider resolves a ready-to-use calendar client for a user,
// including a valid access token. Returns ErrSyncDisabled when the user has
// no enabled integration.
type ClientProvider interface {
	ClientFor(ctx context.Context, userID string) (CalendarClient, model.CalendarIntegration, error)
}

// TokenSource hands out a valid access token for a user, refreshing it
// behind an advisory lease when needed.
type TokenSource interface {
	Token(ctx context.Context, userID string) (string, error)
}
