// Package breaker implements the circuit breaker that gates execution on
// daily loss and consecutive failures. It is a three-state machine
// (closed, open, half-open) with an explicit, externally driven recovery
// cycle: after the recovery timeout an operator or supervisor calls
// AttemptRecovery, runs one trial operation, and then either ConfirmRecovery
// or ReopenCircuit.
package breaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// checkLatencyBudget is the soft latency target for CheckBeforeExecution.
// Exceeding it logs a warning but never fails the check.
const checkLatencyBudget = time.Millisecond

// Config holds the circuit breaker thresholds.
type Config struct {
	// DailyLossLimitETH is the hard stop: an operation whose estimated loss
	// would push the accumulated daily loss over this limit trips the
	// breaker before any external call is made.
	DailyLossLimitETH float64

	// MaxConsecutiveFailures trips the breaker when reached.
	MaxConsecutiveFailures int

	// FailureThresholdPct is the tolerated percentage of failing operations.
	// Tracked for observability; it does not gate transitions.
	FailureThresholdPct float64

	// RecoveryTimeout must elapse after a trip before AttemptRecovery can
	// move the breaker to half-open.
	RecoveryTimeout time.Duration

	// EventCapacity bounds the in-memory error event ring. Zero means the
	// default of 1000.
	EventCapacity int
}

func (c Config) withDefaults() Config {
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 5 * time.Minute
	}
	if c.EventCapacity <= 0 {
		c.EventCapacity = 1000
	}
	return c
}

// metrics is the gate-relevant and observability state. dailyLoss and
// consecutiveFailures are the only fields that drive transitions.
type metrics struct {
	dailyLoss           float64
	consecutiveFailures int
	totalErrors         int64
	totalOps            int64
	stateChanges        int64
	lastErrorTime       *time.Time
}

// Breaker is the circuit breaker. All state sits behind one mutex;
// CheckBeforeExecution and RecordExecutionResult are separate critical
// sections, so under heavy concurrency the daily-loss limit may be slightly
// overshot. That is accepted: the breaker is a risk bound, not a hard
// real-time accountant.
type Breaker struct {
	cfg    Config
	logger *slog.Logger

	mu            sync.Mutex
	state         domain.CircuitState
	metrics       metrics
	events        *eventRing
	trippedAt     *time.Time
	clock         func() time.Time // injectable for tests
	onStateChange func(from, to domain.CircuitState)
}

// New creates a closed breaker with the given thresholds.
func New(cfg Config, logger *slog.Logger) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "circuit_breaker")),
		state:  domain.CircuitClosed,
		events: newEventRing(cfg.EventCapacity),
		clock:  time.Now,
	}
}

// OnStateChange registers a callback invoked (outside the lock) after every
// state transition. Used to fan out to notifications and the status cache;
// the breaker itself never calls back into the orchestrator.
func (b *Breaker) OnStateChange(fn func(from, to domain.CircuitState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// CheckBeforeExecution is the pre-flight gate. It returns false with a
// human-readable reason when the breaker is open or when estimatedLossETH
// would push the daily loss over the limit; the latter trips the breaker in
// the same call, before any external call is issued. The check is O(1);
// excess latency is logged as a soft warning.
func (b *Breaker) CheckBeforeExecution(estimatedLossETH float64) (bool, string) {
	start := time.Now()

	b.mu.Lock()
	var notify func()

	switch b.state {
	case domain.CircuitOpen:
		b.mu.Unlock()
		b.warnSlowCheck(start)
		return false, "circuit breaker is OPEN - too many errors"

	case domain.CircuitClosed, domain.CircuitHalfOpen:
		if b.metrics.dailyLoss+estimatedLossETH > b.cfg.DailyLossLimitETH {
			limit := b.cfg.DailyLossLimitETH
			notify = b.tripLocked("daily_loss_exceeded",
				fmt.Sprintf("daily loss would exceed %.4f ETH", limit))
			b.mu.Unlock()
			if notify != nil {
				notify()
			}
			b.warnSlowCheck(start)
			return false, fmt.Sprintf("daily loss limit exceeded (%.4f ETH)", limit)
		}
	}

	b.mu.Unlock()
	b.warnSlowCheck(start)
	return true, ""
}

func (b *Breaker) warnSlowCheck(start time.Time) {
	if elapsed := time.Since(start); elapsed > checkLatencyBudget {
		b.logger.Warn("breaker check exceeded latency budget",
			slog.Duration("elapsed", elapsed),
			slog.Duration("budget", checkLatencyBudget),
		)
	}
}

// RecordExecutionResult feeds one terminal outcome back into the breaker.
// On success consecutive failures reset to zero and any realized loss is
// added to the daily total. Profit never offsets prior losses within the
// accounting window; the daily loss only resets on an explicit boundary or
// recovery event. On failure the consecutive-failure counter grows, an error
// event is appended, and the breaker may trip.
func (b *Breaker) RecordExecutionResult(operationID string, success bool, profitOrLossETH float64, kind domain.ErrorKind, errMsg string) {
	b.mu.Lock()
	var notify func()

	b.metrics.totalOps++

	if success {
		if profitOrLossETH < 0 {
			b.metrics.dailyLoss += -profitOrLossETH
		}
		b.metrics.consecutiveFailures = 0
		b.mu.Unlock()
		b.logger.Debug("operation succeeded",
			slog.String("operation_id", operationID),
			slog.Float64("pnl_eth", profitOrLossETH),
		)
		return
	}

	now := b.clock()
	b.metrics.consecutiveFailures++
	b.metrics.totalErrors++
	b.metrics.lastErrorTime = &now
	if profitOrLossETH < 0 {
		b.metrics.dailyLoss += -profitOrLossETH
	}

	sev := domain.SeverityOf(errMsg)
	b.events.append(domain.ErrorEvent{
		Timestamp: now,
		Kind:      kind,
		Severity:  sev,
		Message:   errMsg,
		Context:   map[string]string{"operation_id": operationID},
	})

	failures := b.metrics.consecutiveFailures
	if failures >= b.cfg.MaxConsecutiveFailures {
		notify = b.tripLocked("consecutive_failures",
			fmt.Sprintf("consecutive failures: %d", failures))
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}

	b.logger.Warn("operation failed",
		slog.String("operation_id", operationID),
		slog.String("kind", string(kind)),
		slog.String("severity", string(sev)),
		slog.Int("consecutive_failures", failures),
		slog.String("error", errMsg),
	)
}

// tripLocked moves the breaker to OPEN. Callers hold the mutex; the returned
// function (possibly nil) must be invoked after unlocking to fire the state
// change callback.
func (b *Breaker) tripLocked(reason, message string) func() {
	if b.state == domain.CircuitOpen {
		return nil
	}
	from := b.state
	now := b.clock()
	b.state = domain.CircuitOpen
	b.trippedAt = &now
	b.metrics.stateChanges++

	b.events.append(domain.ErrorEvent{
		Timestamp: now,
		Kind:      domain.ErrorKindUnknown,
		Severity:  domain.SeverityCritical,
		Message:   message,
		Context:   map[string]string{"trigger": reason},
	})

	b.logger.Error("circuit breaker tripped",
		slog.String("trigger", reason),
		slog.String("detail", message),
	)

	return b.stateChangeFn(from, domain.CircuitOpen)
}

func (b *Breaker) stateChangeFn(from, to domain.CircuitState) func() {
	fn := b.onStateChange
	if fn == nil {
		return nil
	}
	return func() { fn(from, to) }
}

// AttemptRecovery moves an open breaker to half-open once the recovery
// timeout has elapsed since the trip, resetting the consecutive-failure
// counter. It returns false with a reason while the cooldown is still
// running. Calling it on a breaker that is not open is a no-op success.
func (b *Breaker) AttemptRecovery() (bool, string) {
	b.mu.Lock()
	if b.state != domain.CircuitOpen {
		b.mu.Unlock()
		return true, ""
	}
	if b.trippedAt == nil {
		b.mu.Unlock()
		return false, "recovery start time not set"
	}

	elapsed := b.clock().Sub(*b.trippedAt)
	if elapsed < b.cfg.RecoveryTimeout {
		remaining := b.cfg.RecoveryTimeout - elapsed
		b.mu.Unlock()
		return false, fmt.Sprintf("recovery timeout in %s", remaining.Round(time.Second))
	}

	b.state = domain.CircuitHalfOpen
	b.metrics.consecutiveFailures = 0
	b.metrics.stateChanges++
	notify := b.stateChangeFn(domain.CircuitOpen, domain.CircuitHalfOpen)
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	b.logger.Info("circuit breaker half-open, testing recovery")
	return true, ""
}

// ConfirmRecovery closes a half-open breaker after one externally verified
// success. The daily loss resets to zero as part of the transition.
func (b *Breaker) ConfirmRecovery() {
	b.mu.Lock()
	if b.state != domain.CircuitHalfOpen {
		b.mu.Unlock()
		return
	}
	b.state = domain.CircuitClosed
	b.metrics.consecutiveFailures = 0
	b.metrics.dailyLoss = 0
	b.trippedAt = nil
	b.metrics.stateChanges++
	notify := b.stateChangeFn(domain.CircuitHalfOpen, domain.CircuitClosed)
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	b.logger.Info("circuit breaker closed, recovery confirmed")
}

// ReopenCircuit returns a half-open breaker to open after a failed trial,
// restarting the recovery timer.
func (b *Breaker) ReopenCircuit() {
	b.mu.Lock()
	if b.state != domain.CircuitHalfOpen {
		b.mu.Unlock()
		return
	}
	now := b.clock()
	b.state = domain.CircuitOpen
	b.trippedAt = &now
	b.metrics.stateChanges++
	notify := b.stateChangeFn(domain.CircuitHalfOpen, domain.CircuitOpen)
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	b.logger.Warn("circuit breaker reopened, recovery failed")
}

// ResetDailyLoss clears the daily loss accumulator. Called at the accounting
// boundary (midnight UTC by the app scheduler), never by trading code.
func (b *Breaker) ResetDailyLoss() {
	b.mu.Lock()
	b.metrics.dailyLoss = 0
	b.mu.Unlock()
	b.logger.Info("daily loss accumulator reset")
}

// Status returns a read-only snapshot for the status API and dashboards.
func (b *Breaker) Status() domain.BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	return domain.BreakerStatus{
		State:                  b.state,
		DailyLossETH:           b.metrics.dailyLoss,
		DailyLossLimitETH:      b.cfg.DailyLossLimitETH,
		ConsecutiveFailures:    b.metrics.consecutiveFailures,
		MaxConsecutiveFailures: b.cfg.MaxConsecutiveFailures,
		TotalErrors:            b.metrics.totalErrors,
		StateChanges:           b.metrics.stateChanges,
		RecoveryTimeoutSec:     int(b.cfg.RecoveryTimeout / time.Second),
		LastErrorTime:          b.metrics.lastErrorTime,
	}
}

// State returns the current circuit state.
func (b *Breaker) State() domain.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RecentErrors returns up to limit of the most recent error events, newest
// last.
func (b *Breaker) RecentErrors(limit int) []domain.ErrorEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events.recent(limit)
}
