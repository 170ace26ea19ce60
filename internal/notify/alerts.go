package notify

import (
	"context"
	"fmt"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// Event types emitted by the execution pipeline. The [notify] config section
// filters on these.
const (
	EventCircuitTripped   = "circuit_tripped"
	EventCircuitHalfOpen  = "circuit_half_open"
	EventCircuitRecovered = "circuit_recovered"
	EventManualReview     = "manual_review"
	EventDailyLossReset   = "daily_loss_reset"
)

// Alerts formats pipeline events into operator notifications. It sits between
// the breaker's state-change callback and the raw Notifier.
type Alerts struct {
	notifier *Notifier
}

// NewAlerts creates an Alerts facade over the given Notifier.
func NewAlerts(notifier *Notifier) *Alerts {
	return &Alerts{notifier: notifier}
}

// StateChange reports a breaker transition. The snapshot carries the loss and
// failure counters that drove the transition.
func (a *Alerts) StateChange(ctx context.Context, from, to domain.CircuitState, status domain.BreakerStatus) error {
	switch to {
	case domain.CircuitOpen:
		return a.notifier.Notify(ctx, EventCircuitTripped,
			"Circuit breaker OPEN",
			fmt.Sprintf("Execution halted (%s -> %s).\nDaily loss: %.4f / %.4f ETH\nConsecutive failures: %d/%d",
				from, to,
				status.DailyLossETH, status.DailyLossLimitETH,
				status.ConsecutiveFailures, status.MaxConsecutiveFailures,
			),
		)
	case domain.CircuitHalfOpen:
		return a.notifier.Notify(ctx, EventCircuitHalfOpen,
			"Circuit breaker HALF_OPEN",
			fmt.Sprintf("Trial period started (%s -> %s). One verified success closes the circuit.", from, to),
		)
	case domain.CircuitClosed:
		return a.notifier.Notify(ctx, EventCircuitRecovered,
			"Circuit breaker CLOSED",
			fmt.Sprintf("Normal operation resumed (%s -> %s).", from, to),
		)
	}
	return nil
}

// ManualReview reports an execution that needs a human decision before any
// retry, typically an on-chain revert.
func (a *Alerts) ManualReview(ctx context.Context, result domain.ExecutionResult) error {
	return a.notifier.Notify(ctx, EventManualReview,
		"Manual review required",
		fmt.Sprintf("Plan %s failed with %s and will not be retried.\nError: %s\nLoss: %.4f ETH",
			result.PlanID, result.Kind, result.Err, result.LossETH,
		),
	)
}

// DailyLossReset reports an explicit daily-loss boundary reset.
func (a *Alerts) DailyLossReset(ctx context.Context, previousLossETH float64) error {
	return a.notifier.Notify(ctx, EventDailyLossReset,
		"Daily loss reset",
		fmt.Sprintf("Daily loss counter reset (was %.4f ETH).", previousLossETH),
	)
}
