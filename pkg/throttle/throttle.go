package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a shared, adaptive rate governor placed in front of every
// external API call. On rate-limit responses the inter-call delay grows
// geometrically; after enough consecutive successes it decays back toward
// zero. A floor rate.Limiter keeps a baseline pace even when the adaptive
// delay is zero.
//
// One Throttle instance is shared per external credential so that a noisy
// caller (the bulk sweep) backs off the whole process.
type Throttle struct {
	mu sync.Mutex

	delay                time.Duration
	consecutiveSuccesses int
	consecutiveFailures  int

	initialDelay      time.Duration
	maxDelay          time.Duration
	recoveryThreshold int

	limiter *rate.Limiter

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Config controls throttle behavior. Zero values select defaults.
type Config struct {
	// InitialDelay is the delay applied after the first rate-limit response.
	InitialDelay time.Duration
	// MaxDelay caps geometric growth.
	MaxDelay time.Duration
	// RecoveryThreshold is the number of consecutive successes required
	// before the delay is reduced.
	RecoveryThreshold int
	// FloorRate is the baseline requests-per-second limit. Zero disables
	// the floor limiter.
	FloorRate float64
	// FloorBurst is the floor limiter burst. Defaults to 1 when FloorRate
	// is set.
	FloorBurst int
}

const (
	defaultInitialDelay      = 500 * time.Millisecond
	defaultMaxDelay          = 60 * time.Second
	defaultRecoveryThreshold = 5
)

// New creates a Throttle from config.
func New(cfg Config) *Throttle {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.RecoveryThreshold <= 0 {
		cfg.RecoveryThreshold = defaultRecoveryThreshold
	}

	t := &Throttle{
		initialDelay:      cfg.InitialDelay,
		maxDelay:          cfg.MaxDelay,
		recoveryThreshold: cfg.RecoveryThreshold,
		sleep:             sleepCtx,
	}
	if cfg.FloorRate > 0 {
		burst := cfg.FloorBurst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.FloorRate), burst)
	}
	return t
}

// Wait blocks for the current adaptive delay plus the floor limiter before
// allowing a call through. Returns the context error if cancelled while
// waiting.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	d := t.delay
	t.mu.Unlock()

	if d > 0 {
		if err := t.sleep(ctx, d); err != nil {
			return err
		}
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// OnSuccess records a successful external call. After RecoveryThreshold
// consecutive successes the delay is halved, dropping to zero once it falls
// below the initial delay.
func (t *Throttle) OnSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.consecutiveFailures = 0
	t.consecutiveSuccesses++
	if t.consecutiveSuccesses < t.recoveryThreshold || t.delay == 0 {
		return
	}

	t.consecutiveSuccesses = 0
	t.delay /= 2
	if t.delay < t.initialDelay {
		t.delay = 0
	}
}

// OnRateLimited records a rate-limit response: the delay doubles (capped at
// MaxDelay) and the success counter resets. The delay never decreases here,
// so consecutive rate-limit responses produce a non-decreasing delay.
func (t *Throttle) OnRateLimited() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.consecutiveSuccesses = 0
	t.consecutiveFailures++

	if t.delay == 0 {
		t.delay = t.initialDelay
		return
	}
	t.delay *= 2
	if t.delay > t.maxDelay {
		t.delay = t.maxDelay
	}
}

// Delay returns the current adaptive delay. Mainly for logging and tests.
func (t *Throttle) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
