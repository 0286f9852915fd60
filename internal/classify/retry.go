package classify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultMaxRetries uint64 = 3

// RetryConfig bounds the exponential backoff between attempts.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = backoff.DefaultInitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = backoff.DefaultMaxInterval
	}
	if c.Multiplier <= 0 {
		c.Multiplier = backoff.DefaultMultiplier
	}
	return c
}

// Retry runs fn until it succeeds, fails with a non-retryable classification,
// or exhausts the attempt budget. Every failure is classified before the
// retry decision, and the error that comes back is always a *Error (the last
// one observed). The backoff delay is preempted by ctx cancellation.
func Retry(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	cfg = cfg.withDefaults()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialInterval
	eb.MaxInterval = cfg.MaxInterval
	eb.Multiplier = cfg.Multiplier
	eb.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	wrapped := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		cerr := Classify(err, op)
		if !cerr.Retryable() {
			return backoff.Permanent(cerr)
		}
		return cerr
	}

	err := backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(eb, cfg.MaxRetries), ctx))
	if err != nil {
		// Permanent errors unwrap to the classified error; a cancelled
		// context surfaces here as the context error.
		return Classify(err, op)
	}
	return nil
}
