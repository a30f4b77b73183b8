package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
	pkgLog "taskmirror/pkg/log"
)

const (
	// expiryMargin treats tokens this close to expiry as already expired,
	// so a token handed out now survives the call it is used for.
	expiryMargin = 2 * time.Minute

	// staleLockAfter is how long a refresh lease may be held before
	// another caller may reclaim it from a crashed holder.
	staleLockAfter = 2 * time.Minute

	// followWait bounds how long a caller waits for another holder's
	// refresh before forcing its own.
	followWait = 10 * time.Second

	followBackoffInitial = 100 * time.Millisecond
	followBackoffMax     = 2 * time.Second
)

// LeaseStore is the persistence the manager needs: the integration row and
// its advisory refresh lease. The calsync repository satisfies it.
type LeaseStore interface {
	GetIntegration(ctx context.Context, userID string) (model.CalendarIntegration, error)
	AcquireRefreshLock(ctx context.Context, userID, owner string, staleBefore time.Time) (bool, error)
	ReleaseRefreshLock(ctx context.Context, userID, owner string) error
	SaveToken(ctx context.Context, opt repository.SaveTokenOptions) error
}

// Manager hands out valid access tokens, refreshing expired ones at most
// once across concurrent callers and processes.
//
// The refresh is guarded by a compare-and-swap lease on the integration
// row: the winner refreshes and persists, everyone else polls the row until
// the new token appears. A lease older than staleLockAfter is treated as
// abandoned and reclaimed.
type Manager struct {
	store     LeaseStore
	refresher Refresher
	l         pkgLog.Logger

	now func() time.Time
}

// NewManager creates a token Manager.
func NewManager(store LeaseStore, refresher Refresher, l pkgLog.Logger) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		l:         l,
		now:       time.Now,
	}
}

// Token returns a valid access token for the user, refreshing it first if
// needed.
func (m *Manager) Token(ctx context.Context, userID string) (string, error) {
	integ, err := m.store.GetIntegration(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get integration: %w", err)
	}
	if integ.UserID == "" {
		return "", ErrNoIntegration
	}
	if integ.TokenValid(m.now(), expiryMargin) {
		return integ.AccessToken, nil
	}
	if integ.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	owner := uuid.NewString()
	deadline := m.now().Add(followWait)
	backoff := followBackoffInitial

	for {
		acquired, err := m.store.AcquireRefreshLock(ctx, userID, owner, m.now().Add(-staleLockAfter))
		if err != nil {
			return "", fmt.Errorf("acquire refresh lock: %w", err)
		}
		if acquired {
			return m.refreshLocked(ctx, userID, owner, integ.RefreshToken)
		}

		// Another caller holds the lease; wait for its result.
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		backoff *= 2
		if backoff > followBackoffMax {
			backoff = followBackoffMax
		}

		integ, err = m.store.GetIntegration(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("get integration: %w", err)
		}
		if integ.TokenValid(m.now(), expiryMargin) {
			return integ.AccessToken, nil
		}

		if m.now().After(deadline) {
			// The holder is taking too long; refresh without the lease
			// rather than fail the caller. The provider tolerates a
			// redundant refresh.
			m.l.Warnf(ctx, "token.Manager.Token: lease wait expired for user %s, refreshing without lease", userID)
			return m.refreshAndSave(ctx, userID, integ.RefreshToken)
		}
	}
}

func (m *Manager) refreshLocked(ctx context.Context, userID, owner, refreshToken string) (string, error) {
	defer func() {
		if err := m.store.ReleaseRefreshLock(ctx, userID, owner); err != nil {
			m.l.Errorf(ctx, "token.Manager.refreshLocked: release lease for user %s: %v", userID, err)
		}
	}()

	// The row may have been refreshed between our validity check and the
	// lease grant.
	integ, err := m.store.GetIntegration(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get integration: %w", err)
	}
	if integ.TokenValid(m.now(), expiryMargin) {
		return integ.AccessToken, nil
	}

	return m.refreshAndSave(ctx, userID, refreshToken)
}

func (m *Manager) refreshAndSave(ctx context.Context, userID, refreshToken string) (string, error) {
	tok, err := m.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	// Some providers rotate the refresh token on use; keep the old one
	// when the response omits it.
	newRefresh := tok.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	if err := m.store.SaveToken(ctx, repository.SaveTokenOptions{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: newRefresh,
		TokenExpiry:  tok.Expiry,
	}); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}

	m.l.Infof(ctx, "token.Manager: refreshed access token for user %s, expires %s", userID, tok.Expiry.Format(time.RFC3339))
	return tok.AccessToken, nil
}
