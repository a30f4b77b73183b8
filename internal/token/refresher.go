package token

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// Refresher exchanges a refresh token for a fresh access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type oauthRefresher struct {
	cfg *oauth2.Config
}

// NewOAuthRefresher builds a Refresher backed by the provider's token
// endpoint.
func NewOAuthRefresher(cfg *oauth2.Config) Refresher {
	return &oauthRefresher{cfg: cfg}
}

func (r *oauthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ts := r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		if isTerminalRefreshError(err) {
			return nil, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToRefresh, err)
	}
	return tok, nil
}

// isTerminalRefreshError reports whether the token endpoint refused the
// grant itself, as opposed to a transient transport or server failure.
func isTerminalRefreshError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	switch retrieveErr.ErrorCode {
	case "invalid_grant", "invalid_client", "unauthorized_client":
		return true
	}
	return false
}
