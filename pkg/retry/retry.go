package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jiraharvest/pkg/config"
	errs "jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
)

// Operation is one attempt of a retryable operation
type Operation func(ctx context.Context) error

// OperationWithResult is one attempt that also yields a value
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// MaxRetryAfter caps a server-requested wait (0 means no cap)
	MaxRetryAfter time.Duration
	// OnRetry is called before each wait, after the delay is known
	OnRetry func(attempt int, err error, delay time.Duration)
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns the harvest retry policy: 7 attempts, exponential
// backoff from 2s doubling up to 60s with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:   7,
		Backoff:       DefaultExponentialBackoff(),
		MaxRetryAfter: 60 * time.Second,
		RetryIf:       DefaultRetryIf,
	}
}

// FromConfig builds a retry policy from the retry section of the config
func FromConfig(rc config.RetryConfig, log logger.Logger) *Config {
	return &Config{
		MaxAttempts: rc.MaxAttempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:    rc.BaseDelay,
			MaxDelay:     rc.MaxDelay,
			Multiplier:   rc.Multiplier,
			JitterFactor: rc.JitterFactor,
		},
		MaxRetryAfter: rc.MaxDelay,
		RetryIf:       DefaultRetryIf,
		Logger:        log,
	}
}

// DefaultRetryIf retries classified transient errors. Cancellation is never
// retried; unclassified errors are.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return true
}

// retryAfter returns the server-requested wait carried by err, if any
func retryAfter(err error) time.Duration {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// Do executes op until it succeeds, returns a non-retryable error, runs out
// of attempts, or ctx is cancelled.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = DefaultExponentialBackoff()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry cancelled after %d attempts: %w", attempt-1, err)
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			log.WithError(err).ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts": attempt,
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		delay := backoff.NextDelay(attempt)
		if ra := retryAfter(err); ra > delay {
			if cfg.MaxRetryAfter > 0 && ra > cfg.MaxRetryAfter {
				ra = max(cfg.MaxRetryAfter, delay)
			}
			delay = ra
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		logger.LogRetry(log, attempt, delay, err)

		if err := Wait(ctx, delay); err != nil {
			log.WarnWithFields("retry cancelled", map[string]interface{}{
				"attempt": attempt,
				"reason":  err.Error(),
			})
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)

	return result, err
}
