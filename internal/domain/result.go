package domain

import "time"

// ExecutionStatus tracks the terminal state of one execution attempt.
type ExecutionStatus string

const (
	ExecutionStatusSubmitted ExecutionStatus = "submitted"
	ExecutionStatusConfirmed ExecutionStatus = "confirmed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ExecutionResult is the outcome of one execution attempt. Callers always
// receive a result; BreakerBlocked distinguishes "the system refused to try"
// from "the system tried and failed".
type ExecutionResult struct {
	PlanID         string          `json:"plan_id"`
	SubmissionID   string          `json:"submission_id"` // bundler user-operation hash
	TxHash         string          `json:"tx_hash"`       // on-chain transaction hash once confirmed
	Status         ExecutionStatus `json:"status"`
	ProfitETH      float64         `json:"profit_eth"` // realized profit, 0 on failure
	LossETH        float64         `json:"loss_eth"`   // realized or assumed loss, 0 on success
	GasUsed        uint64          `json:"gas_used"`
	Kind           ErrorKind       `json:"error_kind,omitempty"`
	Err            string          `json:"error,omitempty"`
	BreakerBlocked bool            `json:"breaker_blocked"`
	Latency        time.Duration   `json:"latency_ns"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
}

// Confirmed reports whether this attempt ended with an on-chain confirmation.
func (r ExecutionResult) Confirmed() bool {
	return r.Status == ExecutionStatusConfirmed
}

// ExecutionStats is an aggregate over recorded execution results.
type ExecutionStats struct {
	Total          int64   `json:"total"`
	Confirmed      int64   `json:"confirmed"`
	Failed         int64   `json:"failed"`
	TotalProfitETH float64 `json:"total_profit_eth"`
	TotalLossETH   float64 `json:"total_loss_eth"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
}
