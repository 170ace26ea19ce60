package domain

import "time"

// CircuitState is the circuit breaker's finite state machine position.
// Operations are only attempted in CLOSED or HALF_OPEN.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// BreakerStatus is a read-only snapshot of the circuit breaker, served by the
// status API and cached for dashboards. DailyLoss and ConsecutiveFailures are
// the only fields that gate execution; everything else is observability.
type BreakerStatus struct {
	State                  CircuitState `json:"state"`
	DailyLossETH           float64      `json:"daily_loss_eth"`
	DailyLossLimitETH      float64      `json:"daily_loss_limit_eth"`
	ConsecutiveFailures    int          `json:"consecutive_failures"`
	MaxConsecutiveFailures int          `json:"max_consecutive_failures"`
	TotalErrors            int64        `json:"total_errors"`
	StateChanges           int64        `json:"state_changes"`
	RecoveryTimeoutSec     int          `json:"recovery_timeout_sec"`
	LastErrorTime          *time.Time   `json:"last_error_time,omitempty"`
}
