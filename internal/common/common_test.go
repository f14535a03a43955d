package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			if calls < 3 {
				return Transient(errors.New("flaky"))
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			return Permanent(errors.New("bad request"))
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on fatal error", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			return NewFatalError(ErrCatchAllMissing)
		})
		require.ErrorIs(t, err, ErrCatchAllMissing)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		last := errors.New("always")
		err := Retry(context.Background(), policy, func(context.Context) error {
			return last
		})
		require.ErrorIs(t, err, ErrMaxRetries)
		require.ErrorIs(t, err, last)
		assert.Contains(t, err.Error(), "after 3 attempts")
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Retry(ctx, RetryPolicy{Attempts: 3, Delay: time.Second}, func(context.Context) error {
			return errors.New("always")
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryPolicyWait(t *testing.T) {
	policy := RetryPolicy{Attempts: 5, Delay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}.normalized()

	assert.Equal(t, time.Second, policy.wait(1, errors.New("x")))
	assert.Equal(t, 2*time.Second, policy.wait(2, errors.New("x")))
	assert.Equal(t, 4*time.Second, policy.wait(3, errors.New("x")))
	assert.Equal(t, 5*time.Second, policy.wait(4, errors.New("x")))
	assert.Equal(t, 5*time.Second, policy.wait(1, fmt.Errorf("429: %w", ErrRateLimit)))
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := RetryPolicy{}.normalized()
	assert.Equal(t, 3, policy.Attempts)
	assert.Equal(t, 100*time.Millisecond, policy.Delay)
	assert.Equal(t, 30*time.Second, policy.MaxDelay)
	assert.InDelta(t, 2.0, policy.Multiplier, 1e-9)
}

func TestErrorClassification(t *testing.T) {
	fatal := fmt.Errorf("loading taxonomy: %w", NewFatalError(ErrCatchAllMissing))
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsRetryable(fatal))
	assert.True(t, IsRetryable(fmt.Errorf("call: %w", ErrRateLimit)))
	assert.False(t, IsRetryable(errors.New("plain")))

	userErr := NewUserError("Merchant resolution failed", errors.New("store closed"))
	assert.Equal(t, "Merchant resolution failed: store closed", UserMessage(fmt.Errorf("wrap: %w", userErr)))
	assert.Equal(t, "", UserMessage(nil))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, slog.LevelInfo, "JSON")
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(&buf, slog.LevelInfo, "xml")
	assert.Error(t, err)
}

func TestLogFieldsAreOrdered(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, slog.LevelDebug, "console")
	require.NoError(t, err)

	prev := slog.Default()
	slog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(prev) })

	LogError(errors.New("boom"), "import failed", Fields{"zeta": 1, "alpha": 2})
	line := buf.String()
	assert.Contains(t, line, "error=boom")
	assert.Less(t, strings.Index(line, "error="), strings.Index(line, "alpha="))
	assert.Less(t, strings.Index(line, "alpha="), strings.Index(line, "zeta="))
}
