package gcalendar

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Sentinel error kinds callers branch on. The raw API error stays wrapped
// underneath for logging.
var (
	// ErrRateLimited marks 429s and 403 rate/quota responses; callers must
	// back off via the shared throttle.
	ErrRateLimited = errors.New("calendar api rate limited")

	// ErrUnauthorized marks 401/403 auth failures; callers route through
	// the token lifecycle manager and eventually disable the integration.
	ErrUnauthorized = errors.New("calendar api unauthorized")

	// ErrNotFound marks 404/410; for deletes this means "already deleted"
	// and is not an error.
	ErrNotFound = errors.New("calendar event not found")
)

// classify wraps an API error with the matching sentinel kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %v", op, ErrRateLimited, err)
		case apiErr.Code == http.StatusForbidden && isQuotaReason(apiErr):
			return fmt.Errorf("%s: %w: %v", op, ErrRateLimited, err)
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
		case apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone:
			return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isQuotaReason distinguishes 403 quota exhaustion from 403 permission
// denial; Google reports both with the same status code.
func isQuotaReason(apiErr *googleapi.Error) bool {
	for _, e := range apiErr.Errors {
		switch e.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return strings.Contains(apiErr.Message, "Rate Limit")
}
