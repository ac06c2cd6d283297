package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int, retryIf func(error) bool) *Config {
	return &Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		RetryIf:      retryIf,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastConfig(5, nil), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	attempts := 0
	boom := errors.New("boom")
	err := Retry(context.Background(), fastConfig(3, nil), func(context.Context) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestDo_PredicateStopsRetry(t *testing.T) {
	attempts := 0
	fatal := errors.New("fatal")
	err := Retry(context.Background(), fastConfig(5, func(error) bool { return false }),
		func(context.Context) error {
			attempts++
			return fatal
		})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, fastConfig(3, nil), func(context.Context) error {
		return errors.New("never retried")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
