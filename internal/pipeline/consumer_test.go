package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

type fakePlanSource struct {
	plans   chan domain.ExecutionPlan
	openErr error
}

func (f *fakePlanSource) Plans(context.Context) (<-chan domain.ExecutionPlan, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.plans, nil
}

type fakeExecutor struct {
	mu      sync.Mutex
	planIDs []string
	execFn  func(plan domain.ExecutionPlan) (domain.ExecutionResult, error)
}

func (f *fakeExecutor) ExecuteWithRecovery(_ context.Context, plan domain.ExecutionPlan, _ int) (domain.ExecutionResult, error) {
	f.mu.Lock()
	f.planIDs = append(f.planIDs, plan.ID)
	f.mu.Unlock()
	if f.execFn != nil {
		return f.execFn(plan)
	}
	return domain.ExecutionResult{PlanID: plan.ID, Status: domain.ExecutionStatusConfirmed}, nil
}

func (f *fakeExecutor) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.planIDs...)
}

func TestConsumerRun_DrainsUntilSourceCloses(t *testing.T) {
	src := &fakePlanSource{plans: make(chan domain.ExecutionPlan, 3)}
	for _, id := range []string{"a", "b", "c"} {
		src.plans <- domain.ExecutionPlan{ID: id}
	}
	close(src.plans)

	exec := &fakeExecutor{}
	c := NewConsumer(src, exec, 2, 3, discardLogger())

	require.NoError(t, c.Run(context.Background()))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, exec.executed())
}

// Plan failures and breaker refusals are per-plan; the consumer keeps going.
func TestConsumerRun_FailuresDoNotStopConsumer(t *testing.T) {
	src := &fakePlanSource{plans: make(chan domain.ExecutionPlan, 3)}
	src.plans <- domain.ExecutionPlan{ID: "fails"}
	src.plans <- domain.ExecutionPlan{ID: "refused"}
	src.plans <- domain.ExecutionPlan{ID: "ok"}
	close(src.plans)

	exec := &fakeExecutor{execFn: func(plan domain.ExecutionPlan) (domain.ExecutionResult, error) {
		switch plan.ID {
		case "fails":
			return domain.ExecutionResult{PlanID: plan.ID, Kind: domain.ErrorKindNetworkError},
				errors.New("network timeout")
		case "refused":
			return domain.ExecutionResult{PlanID: plan.ID, BreakerBlocked: true}, domain.ErrCircuitOpen
		default:
			return domain.ExecutionResult{PlanID: plan.ID, Status: domain.ExecutionStatusConfirmed}, nil
		}
	}}
	c := NewConsumer(src, exec, 1, 3, discardLogger())

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"fails", "refused", "ok"}, exec.executed())
}

func TestConsumerRun_ContextCancel(t *testing.T) {
	src := &fakePlanSource{plans: make(chan domain.ExecutionPlan)}
	exec := &fakeExecutor{}
	c := NewConsumer(src, exec, 2, 3, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		// Cancellation is a clean shutdown, not a consumer error.
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on context cancel")
	}
	assert.Empty(t, exec.executed())
}

func TestConsumerRun_OpenSourceFailure(t *testing.T) {
	src := &fakePlanSource{openErr: errors.New("stream unavailable")}
	c := NewConsumer(src, &fakeExecutor{}, 2, 3, discardLogger())

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open plan source")
}

func TestNewConsumer_DefaultConcurrency(t *testing.T) {
	c := NewConsumer(&fakePlanSource{}, &fakeExecutor{}, 0, 3, discardLogger())
	assert.Equal(t, defaultConcurrency, c.concurrency)
}

type resetSpy struct {
	mu    sync.Mutex
	calls int
}

func (r *resetSpy) ResetDailyLoss() {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func TestDailyReset_StopsOnCancel(t *testing.T) {
	d := NewDailyReset(&resetSpy{}, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("daily reset did not stop on context cancel")
	}
}
