package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

type fakeSender struct {
	mu       sync.Mutex
	name     string
	titles   []string
	messages []string
	err      error
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
	f.messages = append(f.messages, message)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.titles)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotify_EventFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventCircuitTripped}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventCircuitTripped, "t", "m"))
	assert.Equal(t, 1, s.sent())

	// Filtered events are dropped without error.
	require.NoError(t, n.Notify(context.Background(), EventDailyLossReset, "t", "m"))
	assert.Equal(t, 1, s.sent())
}

func TestNotify_EmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventManualReview, "t", "m"))
	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Equal(t, 2, s.sent())
}

// One failing sender does not block delivery to the others.
func TestDispatch_PartialFailure(t *testing.T) {
	bad := &fakeSender{name: "telegram", err: errors.New("api down")}
	good := &fakeSender{name: "discord"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	assert.Equal(t, 1, good.sent())
}

func TestNotify_NoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, discardLogger())
	assert.NoError(t, n.Notify(context.Background(), EventCircuitTripped, "t", "m"))
}

func TestAlerts_StateChange(t *testing.T) {
	s := &fakeSender{name: "fake"}
	a := NewAlerts(NewNotifier([]Sender{s}, nil, discardLogger()))

	status := domain.BreakerStatus{
		DailyLossETH:           0.42,
		DailyLossLimitETH:      1.0,
		ConsecutiveFailures:    5,
		MaxConsecutiveFailures: 5,
	}

	require.NoError(t, a.StateChange(context.Background(), domain.CircuitClosed, domain.CircuitOpen, status))
	require.Equal(t, 1, s.sent())
	assert.Contains(t, s.titles[0], "OPEN")
	assert.Contains(t, s.messages[0], "0.4200 / 1.0000 ETH")
	assert.Contains(t, s.messages[0], "5/5")

	require.NoError(t, a.StateChange(context.Background(), domain.CircuitOpen, domain.CircuitHalfOpen, status))
	require.NoError(t, a.StateChange(context.Background(), domain.CircuitHalfOpen, domain.CircuitClosed, status))
	assert.Equal(t, 3, s.sent())
}

func TestAlerts_ManualReview(t *testing.T) {
	s := &fakeSender{name: "fake"}
	a := NewAlerts(NewNotifier([]Sender{s}, nil, discardLogger()))

	res := domain.ExecutionResult{
		PlanID:  "plan-9",
		Kind:    domain.ErrorKindExecutionReverted,
		Err:     "execution reverted",
		LossETH: 0.01,
	}
	require.NoError(t, a.ManualReview(context.Background(), res))
	require.Equal(t, 1, s.sent())
	assert.Contains(t, s.messages[0], "plan-9")
	assert.Contains(t, s.messages[0], "will not be retried")
}

func TestAlerts_DailyLossReset(t *testing.T) {
	s := &fakeSender{name: "fake"}
	a := NewAlerts(NewNotifier([]Sender{s}, nil, discardLogger()))

	require.NoError(t, a.DailyLossReset(context.Background(), 0.7))
	require.Equal(t, 1, s.sent())
	assert.Contains(t, s.messages[0], "0.7000 ETH")
}
