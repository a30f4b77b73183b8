package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"taskmirror/internal/model"
	"taskmirror/pkg/log"
	"taskmirror/pkg/response"
)

const (
	// userIDHeader carries the caller identity. The service is deployed
	// behind an authenticating proxy that sets it.
	userIDHeader = "X-User-ID"

	scopeKey = "scope"
)

type Middleware struct {
	l           log.Logger
	rateLimiter *rateLimiter
}

func New(l log.Logger, requestsPerMin int) Middleware {
	return Middleware{
		l:           l,
		rateLimiter: newRateLimiter(requestsPerMin),
	}
}

// Auth binds the caller identity from the proxy header into the request
// scope. Requests without it are rejected.
func (m Middleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			response.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(scopeKey, model.Scope{UserID: userID})
		c.Next()
	}
}

// RateLimit applies a per-user request limit.
func (m Middleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			userID = c.ClientIP()
		}

		if err := m.rateLimiter.Allow(userID); err != nil {
			m.l.Warnf(c.Request.Context(), "middleware.RateLimit: %v", err)
			response.TooManyRequests(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ScopeFromContext returns the scope bound by Auth. Zero scope means Auth
// did not run for this route.
func ScopeFromContext(c *gin.Context) model.Scope {
	v, ok := c.Get(scopeKey)
	if !ok {
		return model.Scope{}
	}
	sc, _ := v.(model.Scope)
	return sc
}

// rateLimiter keeps one token bucket per user with auto-expiry so idle
// users do not accumulate.
type rateLimiter struct {
	limiters *expirable.LRU[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func newRateLimiter(requestsPerMin int) *rateLimiter {
	if requestsPerMin <= 0 {
		requestsPerMin = 120
	}
	burst := requestsPerMin / 10
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](1000, nil, 5*time.Minute),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burst,
	}
}

func (rl *rateLimiter) Allow(key string) error {
	limiter, ok := rl.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters.Add(key, limiter)
	}

	if !limiter.Allow() {
		return fmt.Errorf("rate limit exceeded for %s", key)
	}
	return nil
}
