package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy yields the wait before the next attempt
type BackoffStrategy interface {
	// NextDelay returns the delay after the given (1-based) failed attempt
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt up to
// MaxDelay, then spreads it by JitterFactor so retries from several
// workers do not line up.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor spreads each delay by +/- this fraction (0.0 to 1.0)
	JitterFactor float64
	// Rand returns values in [0, 1); nil uses math/rand
	Rand func() float64
}

// DefaultExponentialBackoff returns base 2s, x2, capped at 60s, 10% jitter
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay returns min(BaseDelay * Multiplier^(attempt-1), MaxDelay) with
// jitter applied
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay)
	limit := float64(eb.MaxDelay)
	// grow step by step so huge attempt counts stop at the cap instead of
	// overflowing
	for i := 1; i < attempt && eb.Multiplier > 1; i++ {
		delay *= eb.Multiplier
		if limit > 0 && delay >= limit {
			break
		}
	}
	if limit > 0 && delay > limit {
		delay = limit
	}

	if eb.JitterFactor > 0 {
		r := rand.Float64
		if eb.Rand != nil {
			r = eb.Rand
		}
		delay += delay * eb.JitterFactor * (2*r() - 1)
	}
	return time.Duration(max(delay, 0))
}

// ConstantBackoff waits the same delay after every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
