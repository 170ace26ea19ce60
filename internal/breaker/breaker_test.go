package breaker

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

func testBreaker(cfg Config) *Breaker {
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNew_Defaults(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 1.0})

	assert.Equal(t, domain.CircuitClosed, b.State())
	st := b.Status()
	assert.Equal(t, 5, st.MaxConsecutiveFailures)
	assert.Equal(t, 300, st.RecoveryTimeoutSec)
}

func TestCheckBeforeExecution_ClosedAllows(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 1.0})

	ok, reason := b.CheckBeforeExecution(0.1)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

// The daily-loss gate is pre-flight: an operation whose estimated loss would
// push the accumulated loss over the limit is refused and the breaker trips
// in the same call, before any external call.
func TestCheckBeforeExecution_DailyLossGate(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 1.0})

	// Accumulate 0.95 ETH of realized loss.
	b.RecordExecutionResult("op-1", false, -0.95, domain.ErrorKindTimeout, "timeout")

	// 0.04 more still fits: 0.99 <= 1.0.
	ok, _ := b.CheckBeforeExecution(0.04)
	assert.True(t, ok)
	assert.Equal(t, domain.CircuitClosed, b.State())

	// 0.10 would overshoot: refused, and the breaker trips.
	ok, reason := b.CheckBeforeExecution(0.10)
	assert.False(t, ok)
	assert.Contains(t, reason, "daily loss limit exceeded")
	assert.Equal(t, domain.CircuitOpen, b.State())
}

func TestCheckBeforeExecution_OpenRefuses(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 1.0, MaxConsecutiveFailures: 1})
	b.RecordExecutionResult("op-1", false, 0, domain.ErrorKindNetworkError, "connection refused")
	require.Equal(t, domain.CircuitOpen, b.State())

	ok, reason := b.CheckBeforeExecution(0)
	assert.False(t, ok)
	assert.Contains(t, reason, "OPEN")
}

// The breaker trips at exactly N consecutive failures, not N-1.
func TestRecordExecutionResult_TripsAtThreshold(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 100, MaxConsecutiveFailures: 5})

	for i := 0; i < 4; i++ {
		b.RecordExecutionResult(fmt.Sprintf("op-%d", i), false, 0, domain.ErrorKindNetworkError, "connection refused")
		assert.Equal(t, domain.CircuitClosed, b.State(), "after %d failures", i+1)
	}

	b.RecordExecutionResult("op-4", false, 0, domain.ErrorKindNetworkError, "connection refused")
	assert.Equal(t, domain.CircuitOpen, b.State())
}

func TestRecordExecutionResult_SuccessResetsFailures(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 100, MaxConsecutiveFailures: 3})

	b.RecordExecutionResult("op-1", false, 0, domain.ErrorKindTimeout, "timeout")
	b.RecordExecutionResult("op-2", false, 0, domain.ErrorKindTimeout, "timeout")
	b.RecordExecutionResult("op-3", true, 0.5, "", "")
	assert.Zero(t, b.Status().ConsecutiveFailures)

	// The reset means two more failures are tolerated again.
	b.RecordExecutionResult("op-4", false, 0, domain.ErrorKindTimeout, "timeout")
	b.RecordExecutionResult("op-5", false, 0, domain.ErrorKindTimeout, "timeout")
	assert.Equal(t, domain.CircuitClosed, b.State())
}

// Profit never offsets accumulated loss: the daily loss only ever grows until
// an explicit boundary or recovery reset.
func TestDailyLossIsMonotonic(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 1.0})

	b.RecordExecutionResult("op-1", false, -0.4, domain.ErrorKindTimeout, "timeout")
	assert.InDelta(t, 0.4, b.Status().DailyLossETH, 1e-12)

	// A profitable success does not shrink the accumulator.
	b.RecordExecutionResult("op-2", true, 2.0, "", "")
	assert.InDelta(t, 0.4, b.Status().DailyLossETH, 1e-12)

	// A success that realized a loss still adds to it.
	b.RecordExecutionResult("op-3", true, -0.1, "", "")
	assert.InDelta(t, 0.5, b.Status().DailyLossETH, 1e-12)
}

func TestRecoveryCycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := testBreaker(Config{
		DailyLossLimitETH:      1.0,
		MaxConsecutiveFailures: 1,
		RecoveryTimeout:        5 * time.Minute,
	})
	b.clock = func() time.Time { return now }

	b.RecordExecutionResult("op-1", false, -0.2, domain.ErrorKindNetworkError, "connection refused")
	require.Equal(t, domain.CircuitOpen, b.State())

	// Too early: still cooling down.
	now = now.Add(2 * time.Minute)
	ok, reason := b.AttemptRecovery()
	assert.False(t, ok)
	assert.Contains(t, reason, "recovery timeout")
	assert.Equal(t, domain.CircuitOpen, b.State())

	// After the timeout the breaker goes half-open.
	now = now.Add(4 * time.Minute)
	ok, _ = b.AttemptRecovery()
	require.True(t, ok)
	assert.Equal(t, domain.CircuitHalfOpen, b.State())
	assert.Zero(t, b.Status().ConsecutiveFailures)

	// A verified success closes it and clears the daily loss.
	b.ConfirmRecovery()
	assert.Equal(t, domain.CircuitClosed, b.State())
	assert.Zero(t, b.Status().DailyLossETH)
}

func TestReopenCircuit_RestartsCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := testBreaker(Config{
		DailyLossLimitETH:      1.0,
		MaxConsecutiveFailures: 1,
		RecoveryTimeout:        5 * time.Minute,
	})
	b.clock = func() time.Time { return now }

	b.RecordExecutionResult("op-1", false, 0, domain.ErrorKindNetworkError, "connection refused")
	now = now.Add(6 * time.Minute)
	ok, _ := b.AttemptRecovery()
	require.True(t, ok)

	// The trial failed: back to open, timer restarted.
	b.ReopenCircuit()
	assert.Equal(t, domain.CircuitOpen, b.State())

	now = now.Add(2 * time.Minute)
	ok, _ = b.AttemptRecovery()
	assert.False(t, ok, "cooldown must restart from the reopen")

	now = now.Add(4 * time.Minute)
	ok, _ = b.AttemptRecovery()
	assert.True(t, ok)
}

func TestAttemptRecovery_NoopWhenNotOpen(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 1.0})
	ok, reason := b.AttemptRecovery()
	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, domain.CircuitClosed, b.State())
}

func TestConfirmAndReopen_NoopOutsideHalfOpen(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 1.0})

	b.ConfirmRecovery()
	assert.Equal(t, domain.CircuitClosed, b.State())
	b.ReopenCircuit()
	assert.Equal(t, domain.CircuitClosed, b.State())
}

func TestResetDailyLoss(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 1.0})
	b.RecordExecutionResult("op-1", false, -0.7, domain.ErrorKindTimeout, "timeout")
	require.InDelta(t, 0.7, b.Status().DailyLossETH, 1e-12)

	b.ResetDailyLoss()
	assert.Zero(t, b.Status().DailyLossETH)
	// Only the loss resets; the state machine is untouched.
	assert.Equal(t, domain.CircuitClosed, b.State())
}

func TestOnStateChange_FiresPerTransition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := testBreaker(Config{
		DailyLossLimitETH:      1.0,
		MaxConsecutiveFailures: 1,
		RecoveryTimeout:        time.Minute,
	})
	b.clock = func() time.Time { return now }

	type transition struct{ from, to domain.CircuitState }
	var got []transition
	b.OnStateChange(func(from, to domain.CircuitState) {
		got = append(got, transition{from, to})
	})

	b.RecordExecutionResult("op-1", false, 0, domain.ErrorKindNetworkError, "connection refused")
	now = now.Add(2 * time.Minute)
	ok, _ := b.AttemptRecovery()
	require.True(t, ok)
	b.ConfirmRecovery()

	require.Len(t, got, 3)
	assert.Equal(t, transition{domain.CircuitClosed, domain.CircuitOpen}, got[0])
	assert.Equal(t, transition{domain.CircuitOpen, domain.CircuitHalfOpen}, got[1])
	assert.Equal(t, transition{domain.CircuitHalfOpen, domain.CircuitClosed}, got[2])
}

func TestRecentErrors_RingEviction(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 100, MaxConsecutiveFailures: 1000, EventCapacity: 3})

	for i := 0; i < 5; i++ {
		b.RecordExecutionResult(fmt.Sprintf("op-%d", i), false, 0, domain.ErrorKindTimeout, fmt.Sprintf("timeout %d", i))
	}

	events := b.RecentErrors(0)
	require.Len(t, events, 3)
	// Oldest evicted; newest last.
	assert.Equal(t, "timeout 2", events[0].Message)
	assert.Equal(t, "timeout 4", events[2].Message)

	limited := b.RecentErrors(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "timeout 3", limited[0].Message)
	assert.Equal(t, "timeout 4", limited[1].Message)
}

func TestStatusSnapshot(t *testing.T) {
	b := testBreaker(Config{DailyLossLimitETH: 2.5, MaxConsecutiveFailures: 4, RecoveryTimeout: 90 * time.Second})

	b.RecordExecutionResult("op-1", false, -0.25, domain.ErrorKindSlippage, "slippage exceeded")

	st := b.Status()
	assert.Equal(t, domain.CircuitClosed, st.State)
	assert.InDelta(t, 0.25, st.DailyLossETH, 1e-12)
	assert.Equal(t, 2.5, st.DailyLossLimitETH)
	assert.Equal(t, 1, st.ConsecutiveFailures)
	assert.Equal(t, 4, st.MaxConsecutiveFailures)
	assert.Equal(t, int64(1), st.TotalErrors)
	assert.Equal(t, 90, st.RecoveryTimeoutSec)
	require.NotNil(t, st.LastErrorTime)
}
