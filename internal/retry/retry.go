// Package retry provides a small bounded-retry helper with exponential
// backoff and jitter for transient remote failures.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the delay after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Factor is the exponential multiplier applied per attempt.
	Factor float64
}

// DefaultConfig returns the retry policy used for provider API calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Factor:       2.0,
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Do retries only errors carrying this
// marker; everything else fails fast.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// Do executes op, retrying transient failures up to cfg.MaxAttempts with
// jittered exponential backoff. It returns the last error unwrapped from
// its transient marker, or ctx.Err() if the context ends while waiting.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Factor < 1 {
		cfg.Factor = 2.0
	}

	delay := cfg.InitialDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil || !IsTransient(err) {
			return unwrapTransient(err)
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		// Jitter spreads concurrent retries apart.
		sleep := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
		if cfg.MaxDelay > 0 && sleep > cfg.MaxDelay {
			sleep = cfg.MaxDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		delay = time.Duration(float64(delay) * cfg.Factor)
	}
	return unwrapTransient(err)
}

func unwrapTransient(err error) error {
	var t *transientError
	if errors.As(err, &t) {
		return t.err
	}
	return err
}
