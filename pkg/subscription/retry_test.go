package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_NextRetryDelay(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 2})
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.NextRetryDelay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{})
	assert.Equal(t, DefaultRetryConfig(), p.config)
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{MaxAttempts: 3})
	assert.False(t, p.ShouldRetry(1, nil))
	assert.True(t, p.ShouldRetry(1, errors.New("x")))
	assert.True(t, p.ShouldRetry(2, errors.New("x")))
	assert.False(t, p.ShouldRetry(3, errors.New("x")))
}

func noSleep(p *RetryPolicy) *[]time.Duration {
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func TestRetryPolicy_Do(t *testing.T) {
	boom := errors.New("boom")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		p := NewRetryPolicy(RetryConfig{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond})
		slept := noSleep(p)
		calls := 0
		attempts, err := p.Do(context.Background(), nil, func(context.Context) error {
			calls++
			if calls < 3 {
				return boom
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *slept)
	})

	t.Run("gives up", func(t *testing.T) {
		p := NewRetryPolicy(RetryConfig{MaxAttempts: 2})
		noSleep(p)
		attempts, err := p.Do(context.Background(), nil, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, attempts)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		p := NewRetryPolicy(RetryConfig{MaxAttempts: 5})
		noSleep(p)
		attempts, err := p.Do(context.Background(), func(err error) bool { return errors.Is(err, boom) },
			func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, attempts)
	})

	t.Run("context cancellation stops the wait", func(t *testing.T) {
		p := NewRetryPolicy(RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		attempts, err := p.Do(ctx, nil, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, attempts)
	})
}
