package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// permanent reports errors that must never be retried: cancellation, a
// breaker refusal, expired plans, and failures whose recovery strategy is
// abort/manual-review.
func permanent(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrCircuitOpen) ||
		errors.Is(err, domain.ErrPlanExpired) ||
		errors.Is(err, domain.ErrNoRecovery)
}

// Config holds the retry/backoff parameters for the recovery engine.
type Config struct {
	// MaxRetries is the default retry budget when a call does not override
	// it. Matches the breaker's max consecutive failures by convention.
	MaxRetries int

	// BackoffBase is the exponential base; backoff for retry n is
	// BackoffBase^n seconds, capped at BackoffMax.
	BackoffBase float64

	// BackoffMax caps a single backoff sleep.
	BackoffMax time.Duration
}

// Defaults fills unset fields with the standard values.
func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2.0
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 120 * time.Second
	}
	return c
}

// Engine executes operations with bounded retries and exponential backoff.
// Retry counters are tracked per operation ID so concurrent operations back
// off independently; a counter resets only when that operation eventually
// succeeds.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	retryCounts map[string]int
	lastBackoff map[string]time.Duration
	rng         *rand.Rand

	// jitter is overridable in tests; defaults to a uniform draw in
	// [0.8, 1.2].
	jitter func() float64
}

// NewEngine creates a recovery engine with the given configuration.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:         cfg.withDefaults(),
		logger:      logger.With(slog.String("component", "recovery_engine")),
		retryCounts: make(map[string]int),
		lastBackoff: make(map[string]time.Duration),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	e.jitter = e.uniformJitter
	return e
}

// uniformJitter draws a multiplicative jitter factor in [0.8, 1.2]. Jitter is
// applied multiplicatively so concurrent retries spread out instead of
// synchronizing into a retry storm.
func (e *Engine) uniformJitter() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return 0.8 + e.rng.Float64()*0.4
}

// Execute runs op with exponential-backoff retries. maxRetries <= 0 uses the
// configured default. The per-operation retry counter persists across calls:
// it only resets once op succeeds, so an operation that exhausted its budget
// stays exhausted until a success clears it.
//
// Execute returns nil on success; on exhaustion it returns the last error
// from op wrapped with domain.ErrMaxRetriesExceeded.
func (e *Engine) Execute(ctx context.Context, operationID string, maxRetries int, op func(context.Context) error) error {
	if maxRetries <= 0 {
		maxRetries = e.cfg.MaxRetries
	}

	retryCount := e.retryCount(operationID)
	var lastErr error

	for retryCount < maxRetries {
		err := op(ctx)
		if err == nil {
			e.reset(operationID)
			e.logger.DebugContext(ctx, "operation succeeded",
				slog.String("operation_id", operationID),
				slog.Int("retries", retryCount),
			)
			return nil
		}

		if permanent(err) {
			e.logger.WarnContext(ctx, "operation failed, not retryable",
				slog.String("operation_id", operationID),
				slog.String("error", err.Error()),
			)
			return err
		}

		lastErr = err
		retryCount++
		e.setRetryCount(operationID, retryCount)

		if retryCount >= maxRetries {
			e.logger.ErrorContext(ctx, "operation failed, retries exhausted",
				slog.String("operation_id", operationID),
				slog.Int("max_retries", maxRetries),
				slog.String("error", err.Error()),
			)
			break
		}

		backoff := e.Backoff(retryCount)
		e.setLastBackoff(operationID, backoff)

		e.logger.WarnContext(ctx, "operation failed, retrying",
			slog.String("operation_id", operationID),
			slog.Int("attempt", retryCount),
			slog.Int("max_retries", maxRetries),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrMaxRetriesExceeded, lastErr)
	}
	return domain.ErrMaxRetriesExceeded
}

// Backoff computes the jittered backoff for the given retry count
// (1-indexed): min(BackoffMax, BackoffBase^retryCount) × jitter.
func (e *Engine) Backoff(retryCount int) time.Duration {
	seconds := math.Pow(e.cfg.BackoffBase, float64(retryCount))
	capped := time.Duration(seconds * float64(time.Second))
	if capped > e.cfg.BackoffMax || capped <= 0 {
		capped = e.cfg.BackoffMax
	}
	return time.Duration(float64(capped) * e.jitter())
}

// RetryInfo returns the current retry counter and last backoff for an
// operation. Observability only.
func (e *Engine) RetryInfo(operationID string) (retries int, lastBackoff time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retryCounts[operationID], e.lastBackoff[operationID]
}

func (e *Engine) retryCount(operationID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retryCounts[operationID]
}

func (e *Engine) setRetryCount(operationID string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retryCounts[operationID] = n
}

func (e *Engine) setLastBackoff(operationID string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastBackoff[operationID] = d
}

func (e *Engine) reset(operationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retryCounts[operationID] = 0
	e.lastBackoff[operationID] = 0
}

// sleep waits for d without holding any lock, returning early if ctx is
// cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
