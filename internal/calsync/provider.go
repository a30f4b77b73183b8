package calsync

import (
	"context"
	"errors"
	"fmt"

	"taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
	"taskmirror/internal/token"
	"taskmirror/pkg/gcalendar"
)

type clientProvider struct {
	repo   repository.IntegrationRepository
	tokens TokenSource
}

// NewClientProvider builds the production ClientProvider: it loads the
// user's integration row, obtains a valid access token from the token
// manager, and wraps it in a calendar client.
func NewClientProvider(repo repository.IntegrationRepository, tokens TokenSource) ClientProvider {
	return &clientProvider{repo: repo, tokens: tokens}
}

func (p *clientProvider) ClientFor(ctx context.Context, userID string) (CalendarClient, model.CalendarIntegration, error) {
	integ, err := p.repo.GetIntegration(ctx, userID)
	if err != nil {
		return nil, model.CalendarIntegration{}, fmt.Errorf("get integration: %w", err)
	}
	if integ.UserID == "" || !integ.SyncEnabled {
		return nil, model.CalendarIntegration{}, ErrSyncDisabled
	}

	accessToken, err := p.tokens.Token(ctx, userID)
	if err != nil {
		// A rejected or missing refresh token never recovers on its own.
		if errors.Is(err, token.ErrRefreshRejected) || errors.Is(err, token.ErrNoRefreshToken) {
			return nil, model.CalendarIntegration{}, fmt.Errorf("%w: %v", ErrCredentialsRejected, err)
		}
		return nil, model.CalendarIntegration{}, fmt.Errorf("get access token: %w", err)
	}

	client, err := gcalendar.NewClientFromToken(ctx, accessToken)
	if err != nil {
		return nil, model.CalendarIntegration{}, err
	}
	return client, integ, nil
}
