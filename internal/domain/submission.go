package domain

import (
	"context"
	"math/big"
	"time"
)

// SubmissionPayload is the unit of work handed to the submission channel.
// The orchestrator builds it from an ExecutionPlan; the channel is free to
// encode it however its wire protocol demands.
type SubmissionPayload struct {
	PlanID              string
	Sender              string // smart account address
	CallData            []byte
	MaxFeePerGasWei     *big.Int
	MaxPriorityFeeWei   *big.Int
	Signature           []byte
	AlternativeProvider bool // route via the secondary endpoint
}

// Receipt is the provisional reference returned by an accepted submission.
type Receipt struct {
	Ref        string // user-operation hash or equivalent
	AcceptedAt time.Time
}

// Confirmation describes the externally verified outcome of a submission.
type Confirmation struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
}

// SubmissionChannel is the external service that carries payloads on-chain
// (bundler, relay). Submit is at-most-once per attempt: after a failure the
// orchestrator builds a fresh payload rather than resubmitting an accepted
// one.
type SubmissionChannel interface {
	// Submit hands the payload over and returns a provisional reference.
	Submit(ctx context.Context, payload SubmissionPayload) (Receipt, error)

	// AwaitConfirmation polls for the outcome of an accepted submission until
	// it confirms, the timeout elapses, or ctx is cancelled. Cancellation is
	// reported as ErrConfirmationTimeout: the real-world outcome is unknown
	// and must not be treated as success.
	AwaitConfirmation(ctx context.Context, ref string, timeout, pollInterval time.Duration) (Confirmation, error)
}

// PlanSource supplies execution plans. The core never originates plans; the
// strategy layer publishes them and the pipeline consumes them here.
type PlanSource interface {
	Plans(ctx context.Context) (<-chan ExecutionPlan, error)
}

// PlanBus is a PlanSource that also accepts plans, backed by a durable
// stream. The publishing side is used by the replay tooling and by tests.
type PlanBus interface {
	PlanSource
	PublishPlan(ctx context.Context, plan ExecutionPlan) error
}

// StatusCache mirrors the latest breaker snapshot into shared storage so
// dashboards can read it without touching the trading process.
type StatusCache interface {
	SetStatus(ctx context.Context, status BreakerStatus) error
	GetStatus(ctx context.Context) (BreakerStatus, error)
}
