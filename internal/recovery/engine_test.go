package recovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

func testEngine() *Engine {
	e := NewEngine(Config{
		MaxRetries:  5,
		BackoffBase: 2.0,
		BackoffMax:  time.Millisecond, // keep test sleeps negligible
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.jitter = func() float64 { return 1.0 }
	return e
}

func TestEngineExecute_SucceedsFirstTry(t *testing.T) {
	e := testEngine()

	calls := 0
	err := e.Execute(context.Background(), "op-1", 3, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	retries, _ := e.RetryInfo("op-1")
	assert.Zero(t, retries)
}

func TestEngineExecute_RetriesThenSucceeds(t *testing.T) {
	e := testEngine()

	calls := 0
	err := e.Execute(context.Background(), "op-1", 5, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("network error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// A success clears the counter.
	retries, backoff := e.RetryInfo("op-1")
	assert.Zero(t, retries)
	assert.Zero(t, backoff)
}

func TestEngineExecute_ExhaustsRetries(t *testing.T) {
	e := testEngine()

	calls := 0
	err := e.Execute(context.Background(), "op-1", 3, func(context.Context) error {
		calls++
		return errors.New("network error")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMaxRetriesExceeded)
	assert.Equal(t, 3, calls)
}

// An exhausted operation stays exhausted across Execute calls until a success
// clears it.
func TestEngineExecute_CounterPersistsAcrossCalls(t *testing.T) {
	e := testEngine()
	boom := errors.New("network error")

	calls := 0
	op := func(context.Context) error {
		calls++
		return boom
	}

	err := e.Execute(context.Background(), "op-1", 2, op)
	require.ErrorIs(t, err, domain.ErrMaxRetriesExceeded)
	assert.Equal(t, 2, calls)

	// Second call: budget already spent, op never runs.
	err = e.Execute(context.Background(), "op-1", 2, op)
	require.ErrorIs(t, err, domain.ErrMaxRetriesExceeded)
	assert.Equal(t, 2, calls)

	// A different operation ID has its own budget.
	err = e.Execute(context.Background(), "op-2", 2, op)
	require.ErrorIs(t, err, domain.ErrMaxRetriesExceeded)
	assert.Equal(t, 4, calls)
}

func TestEngineExecute_PermanentErrorsStopImmediately(t *testing.T) {
	permanentErrs := []error{
		domain.ErrCircuitOpen,
		domain.ErrPlanExpired,
		domain.ErrNoRecovery,
		context.Canceled,
	}

	for _, perr := range permanentErrs {
		t.Run(perr.Error(), func(t *testing.T) {
			e := testEngine()
			calls := 0
			err := e.Execute(context.Background(), "op-1", 5, func(context.Context) error {
				calls++
				return perr
			})
			require.ErrorIs(t, err, perr)
			assert.Equal(t, 1, calls, "permanent errors must not be retried")
		})
	}
}

func TestEngineExecute_ContextCancelDuringBackoff(t *testing.T) {
	e := NewEngine(Config{
		MaxRetries:  5,
		BackoffBase: 2.0,
		BackoffMax:  10 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.jitter = func() float64 { return 1.0 }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := e.Execute(ctx, "op-1", 5, func(context.Context) error {
		return errors.New("network error")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineBackoff(t *testing.T) {
	e := NewEngine(Config{
		MaxRetries:  5,
		BackoffBase: 2.0,
		BackoffMax:  120 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.jitter = func() float64 { return 1.0 }

	assert.Equal(t, 2*time.Second, e.Backoff(1))
	assert.Equal(t, 4*time.Second, e.Backoff(2))
	assert.Equal(t, 8*time.Second, e.Backoff(3))
	// 2^7 = 128s is over the cap.
	assert.Equal(t, 120*time.Second, e.Backoff(7))
	// Far past any float precision, still capped.
	assert.Equal(t, 120*time.Second, e.Backoff(60))
}

func TestEngineBackoff_JitterBounds(t *testing.T) {
	e := NewEngine(Config{
		MaxRetries:  5,
		BackoffBase: 2.0,
		BackoffMax:  120 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 0; i < 200; i++ {
		b := e.Backoff(2) // nominal 4s
		assert.GreaterOrEqual(t, b, time.Duration(float64(4*time.Second)*0.8)-time.Nanosecond)
		assert.LessOrEqual(t, b, time.Duration(float64(4*time.Second)*1.2)+time.Nanosecond)
	}
}
