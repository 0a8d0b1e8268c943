package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/platinummonkey/guidepost/pkg/httputil"
	"github.com/platinummonkey/guidepost/pkg/observability"
)

// Limiter decides whether one more event for key fits in the current window.
// A non-nil error means the backing store failed; callers choose whether to
// fail open.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max events allowed in one window
	RequestsPerWindow int
	// WindowDuration is the fixed window length
	WindowDuration time.Duration
}

// DefaultRateLimitConfig returns default rate limit settings
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
	}
}

// PageViewRateLimitConfig is the per-session page view budget
func PageViewRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
	}
}

// RateLimiter is an in-memory fixed window limiter for single-instance
// deployments. Counters are lost on restart.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow counts one event for key
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists || now.Sub(b.windowStart) >= rl.config.WindowDuration {
		b = &bucket{windowStart: now.Truncate(rl.config.WindowDuration)}
		rl.buckets[key] = b
	}

	if b.count >= rl.config.RequestsPerWindow {
		return false, nil
	}
	b.count++
	return true, nil
}

// Remaining returns the events left in key's current window
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists || rl.now().Sub(b.windowStart) >= rl.config.WindowDuration {
		return rl.config.RequestsPerWindow
	}
	return rl.config.RequestsPerWindow - b.count
}

// Cleanup removes expired windows
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, b := range rl.buckets {
		if now.Sub(b.windowStart) >= rl.config.WindowDuration {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps expired windows until ctx is cancelled
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = rl.config.WindowDuration
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// KeyFunc derives the limiter key from a request
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by client address
func ByClientIP(r *http.Request) string {
	return "ip:" + httputil.ClientIP(r)
}

// RateLimitMiddleware provides HTTP rate limiting over any Limiter
type RateLimitMiddleware struct {
	limiter  Limiter
	config   *RateLimitConfig
	keyFunc  KeyFunc
	failOpen bool
}

// NewRateLimitMiddleware creates a new rate limit middleware. With failOpen
// a limiter error lets the request through; otherwise it is answered with 503.
func NewRateLimitMiddleware(limiter Limiter, config *RateLimitConfig, keyFunc KeyFunc, failOpen bool) *RateLimitMiddleware {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if keyFunc == nil {
		keyFunc = ByClientIP
	}
	return &RateLimitMiddleware{
		limiter:  limiter,
		config:   config,
		keyFunc:  keyFunc,
		failOpen: failOpen,
	}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := m.limiter.Allow(r.Context(), m.keyFunc(r))
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("rate limiter unavailable")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteServiceUnavailable(w, "service temporarily unavailable")
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.config.RequestsPerWindow))
		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", m.config.WindowDuration.Seconds()))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
