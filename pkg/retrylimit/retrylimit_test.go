package retrylimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type statusErr int

func (s statusErr) Error() string   { return http.StatusText(int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func fastConfig(attempts int) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.RateLimitDelay = time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }

	err := WithRetryConfig(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr(http.StatusBadGateway)
		}
		return nil
	}, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestWithRetryMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := WithRetryConfig(context.Background(), func(context.Context) error {
		calls++
		return boom
	}, nil, fastConfig(3))
	assert.ErrorIs(t, err, ErrMaxAttempts)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestWithRetryFatalStops(t *testing.T) {
	calls := 0
	boom := errors.New("bad request")
	err := WithRetryConfig(context.Background(), func(context.Context) error {
		calls++
		return Fatal(boom)
	}, nil, fastConfig(5))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMaxAttempts)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Fatal(nil))
}

func TestWithRetryContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetryConfig(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	}, nil, fastConfig(5))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)

	err = WithRetryConfig(ctx, func(context.Context) error {
		t.Fatal("must not run after cancellation")
		return nil
	}, nil, fastConfig(5))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithRetryRateLimitSlowsLimiter(t *testing.T) {
	lim := NewAdaptiveLimiter(100, 1, 100, 1, 0.5)
	calls := 0
	err := WithRetryConfig(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return statusErr(http.StatusTooManyRequests)
		}
		return nil
	}, lim, fastConfig(3))
	require.NoError(t, err)
	assert.Equal(t, 50.0, lim.CurrentLimit(), "halved and not raised again within the cooldown")
}

func TestAdaptiveLimiterBounds(t *testing.T) {
	lim := NewAdaptiveLimiter(2, 1, 3, 1, 0.5)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	lim.now = func() time.Time { return now }

	lim.Success()
	lim.Success()
	assert.Equal(t, 3.0, lim.CurrentLimit(), "capped at max")
	assert.Equal(t, 3, lim.CurrentBurst())

	lim.RateLimited()
	lim.RateLimited()
	lim.RateLimited()
	assert.Equal(t, 1.0, lim.CurrentLimit(), "floored at min")

	lim.Success()
	assert.Equal(t, 1.0, lim.CurrentLimit(), "no raise during cooldown")
	now = now.Add(11 * time.Second)
	lim.Success()
	assert.Equal(t, 2.0, lim.CurrentLimit())

	assert.Equal(t, rate.Limit(3), lim.MaxLimit())
	assert.Equal(t, rate.Limit(1), lim.MinLimit())
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsRateLimitError(statusErr(429)))
	assert.False(t, IsRateLimitError(statusErr(500)))
	assert.True(t, IsServerError(statusErr(503)))
	assert.False(t, IsServerError(statusErr(404)))
	assert.False(t, IsServerError(errors.New("plain")))
	assert.True(t, DefaultClassifier(statusErr(429)))
	assert.False(t, DefaultClassifier(statusErr(400)))
}
