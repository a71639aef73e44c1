package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	calls := 0
	wantErr := errors.New("boom")

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestRetrySucceedsOnLaterAttempt(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	calls := 0

	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		calls++
		return errors.New("always fails")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls, 5)
}

func TestAssignmentRetryConfigMatchesFormula(t *testing.T) {
	cfg := AssignmentRetryConfig(2*time.Second, 3)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.InitialDelay)
	assert.Equal(t, 16*time.Second, cfg.MaxDelay)
	assert.Zero(t, cfg.Jitter)
}

func TestNextDelayCapsAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{Multiplier: 2, MaxDelay: 3 * time.Second}
	assert.Equal(t, 2*time.Second, nextDelay(time.Second, cfg))
	assert.Equal(t, 3*time.Second, nextDelay(2*time.Second, cfg))
}

func TestAddJitterZeroReturnsUnchanged(t *testing.T) {
	assert.Equal(t, time.Second, addJitter(time.Second, 0))
}

func TestAddJitterStaysWithinBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := addJitter(time.Second, 0.1)
		assert.True(t, d >= 900*time.Millisecond && d <= 1100*time.Millisecond, "jittered delay %v out of bounds", d)
	}
}
