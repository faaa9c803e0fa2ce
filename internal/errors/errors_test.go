// internal/errors/errors_test.go
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("escalation", CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return now }

	boom := stderrors.New("boom")
	assert.Equal(t, boom, cb.Execute(func() error { return boom }))
	assert.Equal(t, CircuitClosed, cb.GetState())
	assert.Equal(t, boom, cb.Execute(func() error { return boom }))
	assert.Equal(t, CircuitOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CircuitClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("escalation", CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	now = now.Add(2 * time.Second)
	assert.True(t, cb.CanExecute())
	assert.Equal(t, CircuitHalfOpen, cb.GetState())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())
	assert.Equal(t, "open", cb.GetStats()["state"])
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: 5 * time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), cfg, "flush", func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return fmt.Errorf("temporary")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		attempts := 0
		root := stderrors.New("bad request")
		err := Retry(context.Background(), cfg, "flush", func(ctx context.Context) error {
			attempts++
			return Permanent(root)
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
		assert.ErrorIs(t, err, root)
		assert.True(t, IsPermanent(err))
	})

	t.Run("gives up after budget", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), cfg, "flush", func(ctx context.Context) error {
			attempts++
			return stderrors.New("down")
		})
		require.Error(t, err)
		assert.Equal(t, cfg.MaxRetries+1, attempts)
		assert.Contains(t, err.Error(), "operation flush failed")
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}
		err := Retry(ctx, slow, "flush", func(ctx context.Context) error {
			cancel()
			return stderrors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, BackoffFactor: 2, MaxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, cfg.Delay(0))
	assert.Equal(t, 200*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, 300*time.Millisecond, cfg.Delay(5))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{stderrors.New("failed to load configuration: missing"), ExitConfig},
		{stderrors.New("dial tcp: connection refused"), ExitNetwork},
		{stderrors.New("failed to parse HTML"), ExitParsing},
		{stderrors.New("deliver batch: sink closed"), ExitOutput},
		{stderrors.New("something odd"), ExitGeneral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetExitCode(tt.err), "%v", tt.err)
	}
}

func TestFormatErrorForCLI(t *testing.T) {
	err := fmt.Errorf("collection failed: %w", stderrors.New("navigate: timeout"))
	assert.Equal(t, "Error: collection failed\n", FormatErrorForCLI(err, false))
	assert.Equal(t, "Error: collection failed: navigate: timeout\n", FormatErrorForCLI(err, true))
	assert.Empty(t, FormatErrorForCLI(nil, true))
}
