package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute})
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "session-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "session-1")
	assert.False(t, ok, "fourth event in window must be rejected")
	assert.Equal(t, 0, limiter.Remaining("session-1"))

	ok, _ = limiter.Allow(ctx, "session-2")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute)
	ok, _ = limiter.Allow(ctx, "session-1")
	assert.True(t, ok, "new window resets the counter")
	assert.Equal(t, 2, limiter.Remaining("session-1"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute})
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "a")
	_, _ = limiter.Allow(context.Background(), "b")
	assert.Equal(t, 0, limiter.Cleanup())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, limiter.Cleanup())
}

func TestDistributedRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "test")
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "session-1")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "session-1")
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	now = now.Add(time.Minute)
	ok, _ = limiter.Allow(ctx, "session-1")
	assert.True(t, ok)

	require.NoError(t, limiter.Reset(ctx, "session-1"))
	remaining, _ = limiter.Remaining(ctx, "session-1")
	assert.Equal(t, 2, remaining)
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	limiter := NewDistributedRateLimiter(client, nil, "")
	ok, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.allowed, s.err }

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		limiter    Limiter
		failOpen   bool
		wantStatus int
	}{
		{"allowed", stubLimiter{allowed: true}, false, http.StatusOK},
		{"limited", stubLimiter{allowed: false}, false, http.StatusTooManyRequests},
		{"store down fail open", stubLimiter{err: errors.New("down")}, true, http.StatusOK},
		{"store down fail closed", stubLimiter{err: errors.New("down")}, false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRateLimitMiddleware(tt.limiter, PageViewRateLimitConfig(), nil, tt.failOpen)
			handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/track", nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusTooManyRequests {
				assert.Equal(t, "60", w.Header().Get("Retry-After"))
			}
		})
	}
}
