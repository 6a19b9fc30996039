// Package retry provides bounded retry loops with linear or exponential
// backoff and optional jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Strategy selects how the delay grows between attempts.
type Strategy int

const (
	// Exponential multiplies the delay by Multiplier after every attempt.
	Exponential Strategy = iota
	// Linear waits InitialBackoff × attempt number.
	Linear
)

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// The operation runs at most MaxRetries+1 times.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries (0 = no cap).
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// JitterFraction is the fraction of backoff used for jitter (0.0-1.0).
	JitterFraction float64
	// Strategy selects linear or exponential growth.
	Strategy Strategy
	// OnRetry is called after a failed attempt that will be retried,
	// before sleeping. attempt is 1-based.
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2, // +/- 20% jitter
	}
}

// ErrorClassifier determines if an error is retryable.
type ErrorClassifier func(error) bool

// IsRetryable is the default classifier: context errors are final,
// everything else is retried.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrPermanent)
}

// ErrPermanent can be wrapped by callers to stop the loop early.
var ErrPermanent = errors.New("permanent failure")

// Do executes fn with retry logic, using the provided classifier to determine
// if errors are retryable. Non-retryable errors are returned unwrapped;
// exhausted retries return a *RetryableError wrapping the last error.
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) error {
	if classifier == nil {
		classifier = IsRetryable
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !classifier(err) {
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		sleep := cfg.delay(attempt, backoff)

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		if cfg.Strategy == Exponential {
			backoff = time.Duration(float64(backoff) * cfg.Multiplier)
			if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}

	return &RetryableError{Err: lastErr, Retries: cfg.MaxRetries}
}

// delay computes the sleep before the retry following attempt (0-based).
func (cfg Config) delay(attempt int, backoff time.Duration) time.Duration {
	d := backoff
	if cfg.Strategy == Linear {
		d = cfg.InitialBackoff * time.Duration(attempt+1)
	}
	d += jitter(d, cfg.JitterFraction)
	if cfg.MaxBackoff > 0 && d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	if d < 0 {
		d = 0
	}
	return d
}

// jitter returns a random duration in range [-jitterFraction*d, +jitterFraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	jitterRange := float64(d) * fraction
	jitterValue := (rand.Float64() - 0.5) * 2 * jitterRange
	return time.Duration(jitterValue)
}

// RetryableError is returned when every attempt failed with a retryable error.
type RetryableError struct {
	Err     error
	Retries int
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("failed after %d retries: %v", e.Retries, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
