package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jiraharvest/pkg/config"
	errs "jiraharvest/pkg/errors"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{10, 60 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterStaysInBand(t *testing.T) {
	backoff := DefaultExponentialBackoff()

	seen := make(map[time.Duration]bool)
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 3600*time.Millisecond)
		assert.LessOrEqual(t, d, 4400*time.Millisecond)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "jitter should vary delays")
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    10 * time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
		JitterFactor: 0.5,
	}

	backoff.Rand = func() float64 { return 0 }
	assert.Equal(t, 5*time.Second, backoff.NextDelay(1))

	backoff.Rand = func() float64 { return 0.5 }
	assert.Equal(t, 10*time.Second, backoff.NextDelay(1))

	// capped before jitter
	backoff.Rand = func() float64 { return 0 }
	assert.Equal(t, 30*time.Second, backoff.NextDelay(1000))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{
		MaxAttempts:  4,
		BaseDelay:    time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   3,
		JitterFactor: 0,
	}, nil)

	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Backoff.NextDelay(2))
	assert.Equal(t, 5*time.Second, cfg.Backoff.NextDelay(3))
}

func TestDoSucceedsAfterTransientErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeServerError, 503, "unavailable")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.New(errs.ErrorTypeNetwork, 0, "connection reset")
	}, fastConfig(3))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.True(t, errs.Is(err, errs.ErrorTypeNetwork), "last error must stay in the chain")
}

func TestDoDoesNotRetryTerminalErrors(t *testing.T) {
	tests := []errs.ErrorType{
		errs.ErrorTypeAuth,
		errs.ErrorTypeClient,
		errs.ErrorTypeNotFound,
		errs.ErrorTypeParsing,
	}

	for _, typ := range tests {
		t.Run(string(typ), func(t *testing.T) {
			attempts := 0
			terminal := errs.New(typ, 400, "no")
			err := Do(context.Background(), func(ctx context.Context) error {
				attempts++
				return terminal
			}, fastConfig(5))

			assert.Same(t, terminal, err)
			assert.Equal(t, 1, attempts)
		})
	}
}

func TestDoHonorsRetryAfter(t *testing.T) {
	var delays []time.Duration
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			e := errs.New(errs.ErrorTypeRateLimit, 429, "slow down")
			e.RetryAfter = 20 * time.Millisecond
			return e
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	require.Len(t, delays, 1)
	assert.Equal(t, 20*time.Millisecond, delays[0])
}

func TestDoCapsRetryAfter(t *testing.T) {
	var delays []time.Duration
	cfg := fastConfig(3)
	cfg.MaxRetryAfter = 5 * time.Millisecond
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			e := errs.New(errs.ErrorTypeRateLimit, 429, "slow down")
			e.RetryAfter = time.Hour
			return e
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	require.Len(t, delays, 1)
	assert.Equal(t, 5*time.Millisecond, delays[0])
}

func TestFromConfigCapsRetryAfterAtMaxDelay(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		Multiplier:  2,
	}, nil)

	assert.Equal(t, time.Minute, cfg.MaxRetryAfter)
}

func TestDoCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
	}

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return errs.New(errs.ErrorTypeServerError, 500, "boom")
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDoNeverRetriesCancellation(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return context.Canceled
	}, fastConfig(5))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Second), context.Canceled)
}
