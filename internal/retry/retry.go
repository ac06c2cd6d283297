// Package retry provides bounded retry with backoff and jitter.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts     int              // Maximum number of attempts
	InitialDelay    time.Duration    // Initial delay between retries
	MaxDelay        time.Duration    // Maximum delay between retries
	Multiplier      float64          // Backoff multiplier
	RandomizeFactor float64          // Jitter factor (0-1)
	RetryIf         func(error) bool // Predicate deciding whether to retry
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:     3,
		InitialDelay:    25 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.1,
		RetryIf:         func(error) bool { return true },
	}
}

// Operation is a retryable operation.
type Operation func(ctx context.Context) error

// Retrier executes operations under a retry policy.
type Retrier struct {
	config *Config
}

// New creates a retrier, normalizing out-of-range settings.
func New(config *Config) *Retrier {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	if config.RandomizeFactor < 0 {
		config.RandomizeFactor = 0
	} else if config.RandomizeFactor > 1 {
		config.RandomizeFactor = 1
	}
	if config.RetryIf == nil {
		config.RetryIf = func(error) bool { return true }
	}
	return &Retrier{config: config}
}

// Do runs op until it succeeds, the predicate declines, the attempt budget
// is exhausted, or the context is canceled. Returns the last error.
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !r.config.RetryIf(lastErr) || attempt == r.config.MaxAttempts {
			break
		}

		select {
		case <-time.After(r.jitter(delay)):
			delay = r.next(delay)
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry delay: %w", ctx.Err())
		}
	}
	return lastErr
}

func (r *Retrier) jitter(delay time.Duration) time.Duration {
	if r.config.RandomizeFactor == 0 {
		return delay
	}
	delta := float64(delay) * r.config.RandomizeFactor
	return time.Duration(float64(delay) - delta + rand.Float64()*2*delta) // #nosec G404 - jitter only
}

func (r *Retrier) next(delay time.Duration) time.Duration {
	n := time.Duration(float64(delay) * r.config.Multiplier)
	if n > r.config.MaxDelay {
		return r.config.MaxDelay
	}
	return n
}

// Retry runs op with the given config.
func Retry(ctx context.Context, config *Config, op Operation) error {
	return New(config).Do(ctx, op)
}
