package token

import "errors"

var (
	// ErrNoIntegration means the user never connected a calendar.
	ErrNoIntegration = errors.New("no calendar integration for user")

	// ErrNoRefreshToken means the stored credential cannot be renewed and
	// the user must reconnect.
	ErrNoRefreshToken = errors.New("integration has no refresh token")

	ErrFailedToRefresh = errors.New("failed to refresh access token")

	// ErrRefreshRejected means the authorization server refused the
	// refresh token outright (revoked or expired grant). Retrying cannot
	// succeed; the user must reconnect.
	ErrRefreshRejected = errors.New("refresh token rejected")
)
