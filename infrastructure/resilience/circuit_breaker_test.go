package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{MaxFailures: 3, OpenTimeout: time.Minute, HealEvery: 3})

	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.IsAvailable())
}

func TestCircuitBreakerHalfOpenRecoversAfterTimeout(t *testing.T) {
	cb := New(Config{MaxFailures: 1, OpenTimeout: 10 * time.Millisecond, HealEvery: 3})

	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.IsAvailable())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := New(Config{MaxFailures: 1, OpenTimeout: 10 * time.Millisecond, HealEvery: 3})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerHalfOpenSuccessCloses(t *testing.T) {
	cb := New(Config{MaxFailures: 1, OpenTimeout: 10 * time.Millisecond, HealEvery: 3})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreakerGradualHeal(t *testing.T) {
	cb := New(Config{MaxFailures: 5, OpenTimeout: time.Minute, HealEvery: 3})

	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, 2, cb.FailureCount())

	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, 2, cb.FailureCount(), "heal only applies every HealEvery successes")

	cb.RecordSuccess()
	assert.Equal(t, 1, cb.FailureCount(), "third consecutive success heals one failure")
}

func TestCircuitBreakerDefaultsApplyWhenZero(t *testing.T) {
	cb := New(Config{})
	assert.Equal(t, 3, cb.cfg.MaxFailures)
	assert.Equal(t, 5*time.Minute, cb.cfg.OpenTimeout)
	assert.Equal(t, 3, cb.cfg.HealEvery)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
