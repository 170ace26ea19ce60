// Package orchestrator drives the end-to-end submission of execution plans:
// breaker gate, payload build, submission, confirmation wait, and result
// recording. It composes the circuit breaker and the recovery engine but the
// coupling is one-directional: the orchestrator calls the breaker and reads
// return values, the breaker never calls back.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TemamAb/ainex-sub004/internal/breaker"
	"github.com/TemamAb/ainex-sub004/internal/domain"
	"github.com/TemamAb/ainex-sub004/internal/recovery"
)

// timeoutLossFraction is the loss assumed when a confirmation times out:
// the real-world outcome is unknown, so the breaker is charged a fraction of
// the expected profit rather than treating the attempt as free.
const timeoutLossFraction = 0.10

// Config holds orchestration parameters.
type Config struct {
	// ConfirmationTimeout bounds the wait for an accepted submission to
	// confirm.
	ConfirmationTimeout time.Duration

	// PollInterval is the fixed polling interval during the confirmation
	// wait.
	PollInterval time.Duration

	// MaxRetries is the default retry budget for ExecuteWithRecovery.
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.ConfirmationTimeout <= 0 {
		c.ConfirmationTimeout = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// Orchestrator executes plans against a submission channel under breaker
// protection. Results are optionally persisted and audited; both stores may
// be nil (for example in dry-run mode).
type Orchestrator struct {
	channel  domain.SubmissionChannel
	brk      *breaker.Breaker
	recovery *recovery.Engine
	builder  *PayloadBuilder
	store    domain.ExecutionStore
	ledger   domain.LedgerStore
	audit    domain.AuditStore
	cfg      Config
	logger   *slog.Logger

	mu         sync.Mutex
	total      int64
	successful int64
	failed     int64
	onResult   func(domain.ExecutionResult)
}

// New creates an Orchestrator. channel, brk, rec, and builder are required;
// store, ledger, and audit may be nil.
func New(
	channel domain.SubmissionChannel,
	brk *breaker.Breaker,
	rec *recovery.Engine,
	builder *PayloadBuilder,
	store domain.ExecutionStore,
	ledger domain.LedgerStore,
	audit domain.AuditStore,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		channel:  channel,
		brk:      brk,
		recovery: rec,
		builder:  builder,
		store:    store,
		ledger:   ledger,
		audit:    audit,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// OnResult registers a callback invoked with every terminal result, used to
// broadcast to the websocket hub. Must be set before execution starts.
func (o *Orchestrator) OnResult(fn func(domain.ExecutionResult)) {
	o.mu.Lock()
	o.onResult = fn
	o.mu.Unlock()
}

// Execute runs one attempt for the plan: breaker check, expiry check, build,
// submit, confirmation wait, result recording. The returned result is always
// populated; err carries a sentinel (domain.ErrCircuitOpen,
// domain.ErrPlanExpired, ...) when the attempt did not confirm.
func (o *Orchestrator) Execute(ctx context.Context, plan domain.ExecutionPlan) (domain.ExecutionResult, error) {
	start := time.Now()
	log := o.logger.With(
		slog.String("plan_id", plan.ID),
		slog.String("strategy", plan.Strategy),
	)

	// Breaker gate: a refusal makes no external calls and is not recorded as
	// an execution failure.
	allowed, reason := o.brk.CheckBeforeExecution(plan.EstimatedLoss())
	if !allowed {
		log.Warn("execution blocked by circuit breaker", slog.String("reason", reason))
		res := domain.ExecutionResult{
			PlanID:         plan.ID,
			Status:         domain.ExecutionStatusFailed,
			Err:            reason,
			BreakerBlocked: true,
			Latency:        time.Since(start),
			SubmittedAt:    time.Now().UTC(),
		}
		o.finish(ctx, res)
		return res, fmt.Errorf("orchestrator: %w: %s", domain.ErrCircuitOpen, reason)
	}

	// Building: expired plans are never submitted.
	now := time.Now().UTC()
	if plan.Expired(now) {
		log.Warn("plan expired, rejecting",
			slog.Time("created_at", plan.CreatedAt),
			slog.Duration("ttl", plan.TTL),
		)
		res := o.failResult(plan, start, "", domain.ErrorKindValidationFailed, "plan expired", 0)
		o.record(ctx, plan, res)
		return res, fmt.Errorf("orchestrator: %w", domain.ErrPlanExpired)
	}

	payload, err := o.builder.Build(plan)
	if err != nil {
		log.Error("payload build failed", slog.String("error", err.Error()))
		msg := err.Error()
		res := o.failResult(plan, start, "", domain.Classify(msg), msg, 0)
		o.record(ctx, plan, res)
		return res, fmt.Errorf("orchestrator: build payload: %w", err)
	}

	// Submission: a rejection here is terminal for the attempt, no
	// confirmation wait. Retries always rebuild and resubmit fresh.
	receipt, err := o.channel.Submit(ctx, payload)
	if err != nil {
		log.Error("submission failed", slog.String("error", err.Error()))
		msg := err.Error()
		res := o.failResult(plan, start, "", domain.Classify(msg), msg, 0)
		o.record(ctx, plan, res)
		return res, fmt.Errorf("orchestrator: %w: %w", domain.ErrSubmissionRejected, err)
	}
	log.Info("submission accepted", slog.String("ref", receipt.Ref))

	// Confirmation wait. Timeout and cancellation are failures: the outcome
	// is unknown, so charge the breaker the assumed fractional loss.
	conf, err := o.channel.AwaitConfirmation(ctx, receipt.Ref, o.cfg.ConfirmationTimeout, o.cfg.PollInterval)
	if err != nil || !conf.Success {
		msg := "confirmation timeout"
		kind := domain.ErrorKindTimeout
		if err != nil && !errors.Is(err, domain.ErrConfirmationTimeout) {
			msg = err.Error()
			kind = domain.Classify(msg)
		} else if err == nil && !conf.Success {
			msg = "execution reverted on chain"
			kind = domain.ErrorKindExecutionReverted
		}
		assumedLoss := plan.EstProfitETH * timeoutLossFraction
		log.Warn("confirmation failed",
			slog.String("ref", receipt.Ref),
			slog.String("error", msg),
			slog.Float64("assumed_loss_eth", assumedLoss),
		)
		res := o.failResult(plan, start, receipt.Ref, kind, msg, assumedLoss)
		o.record(ctx, plan, res)
		if err == nil {
			err = domain.ErrConfirmationTimeout
		}
		return res, fmt.Errorf("orchestrator: await confirmation: %w", err)
	}

	confirmedAt := time.Now().UTC()
	res := domain.ExecutionResult{
		PlanID:       plan.ID,
		SubmissionID: receipt.Ref,
		TxHash:       conf.TxHash,
		Status:       domain.ExecutionStatusConfirmed,
		ProfitETH:    plan.EstProfitETH,
		GasUsed:      conf.GasUsed,
		Latency:      time.Since(start),
		SubmittedAt:  receipt.AcceptedAt,
		ConfirmedAt:  &confirmedAt,
	}

	o.brk.RecordExecutionResult(plan.ID, true, res.ProfitETH, "", "")
	o.persistSuccess(ctx, plan, res)
	o.finish(ctx, res)

	log.Info("execution confirmed",
		slog.String("tx_hash", conf.TxHash),
		slog.Float64("profit_eth", res.ProfitETH),
		slog.Uint64("gas_used", conf.GasUsed),
		slog.Duration("latency", res.Latency),
	)
	return res, nil
}

// ExecuteWithRecovery wraps Execute with classified-error recovery: between
// attempts the plan's adjustable parameters are tuned per the recovery
// strategy for the failure, and the recovery engine applies capped
// exponential backoff. Breaker refusals and terminal strategies stop the
// loop immediately. The last result is returned when all attempts fail.
func (o *Orchestrator) ExecuteWithRecovery(ctx context.Context, plan domain.ExecutionPlan, maxRetries int) (domain.ExecutionResult, error) {
	if maxRetries <= 0 {
		maxRetries = o.cfg.MaxRetries
	}

	current := plan // copy; the caller's plan is never mutated
	attempt := 0
	var last domain.ExecutionResult

	err := o.recovery.Execute(ctx, plan.ID, maxRetries, func(ctx context.Context) error {
		attempt++
		res, execErr := o.Execute(ctx, current)
		last = res
		if res.Confirmed() {
			return nil
		}
		if res.BreakerBlocked {
			return fmt.Errorf("%w: %s", domain.ErrCircuitOpen, res.Err)
		}
		if execErr != nil && errors.Is(execErr, domain.ErrPlanExpired) {
			return execErr
		}

		strategy := recovery.StrategyFor(res.Kind, attempt)
		if strategy.Terminal() {
			o.auditLog(ctx, "recovery_aborted", map[string]any{
				"plan_id":  plan.ID,
				"kind":     string(res.Kind),
				"strategy": string(strategy),
			})
			return fmt.Errorf("%w: %s for %s", domain.ErrNoRecovery, strategy, res.Kind)
		}

		adjusted, ok := recovery.Apply(strategy, current.Params)
		if ok {
			current.Params = adjusted
			o.logger.Info("applied recovery strategy",
				slog.String("plan_id", plan.ID),
				slog.String("strategy", string(strategy)),
				slog.Int("attempt", attempt),
			)
		}
		if execErr == nil {
			execErr = errors.New(res.Err)
		}
		return execErr
	})
	if err != nil {
		return last, fmt.Errorf("orchestrator: execute with recovery: %w", err)
	}
	return last, nil
}

// failResult assembles a failed result and updates in-memory counters.
func (o *Orchestrator) failResult(plan domain.ExecutionPlan, start time.Time, ref string, kind domain.ErrorKind, msg string, assumedLossETH float64) domain.ExecutionResult {
	return domain.ExecutionResult{
		PlanID:       plan.ID,
		SubmissionID: ref,
		Status:       domain.ExecutionStatusFailed,
		LossETH:      assumedLossETH,
		Kind:         kind,
		Err:          msg,
		Latency:      time.Since(start),
		SubmittedAt:  time.Now().UTC(),
	}
}

// record reports a terminal failure exactly once to the breaker and the
// audit log, then persists and broadcasts the result.
func (o *Orchestrator) record(ctx context.Context, plan domain.ExecutionPlan, res domain.ExecutionResult) {
	o.brk.RecordExecutionResult(plan.ID, false, -res.LossETH, res.Kind, res.Err)
	o.auditLog(ctx, "execution_failed", map[string]any{
		"plan_id":  plan.ID,
		"kind":     string(res.Kind),
		"error":    res.Err,
		"loss_eth": res.LossETH,
	})
	o.persistResult(ctx, res)
	o.finish(ctx, res)
}

// persistSuccess writes the confirmed result and its ledger entry.
func (o *Orchestrator) persistSuccess(ctx context.Context, plan domain.ExecutionPlan, res domain.ExecutionResult) {
	o.persistResult(ctx, res)
	if o.ledger == nil {
		return
	}
	gasETH := plan.EstimatedLoss()
	entry := domain.LedgerEntry{
		PlanID:     res.PlanID,
		Strategy:   plan.Strategy,
		TxHash:     res.TxHash,
		ProfitETH:  res.ProfitETH,
		GasCostETH: gasETH,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.ledger.Record(ctx, entry); err != nil {
		o.logger.Warn("ledger record failed",
			slog.String("plan_id", res.PlanID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) persistResult(ctx context.Context, res domain.ExecutionResult) {
	if o.store == nil {
		return
	}
	if err := o.store.Create(ctx, res); err != nil {
		o.logger.Warn("execution store write failed",
			slog.String("plan_id", res.PlanID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) auditLog(ctx context.Context, event string, detail map[string]any) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Log(ctx, event, detail); err != nil {
		o.logger.Warn("audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// finish updates counters and fires the result callback.
func (o *Orchestrator) finish(_ context.Context, res domain.ExecutionResult) {
	o.mu.Lock()
	o.total++
	if res.Confirmed() {
		o.successful++
	} else {
		o.failed++
	}
	fn := o.onResult
	o.mu.Unlock()

	if fn != nil {
		fn(res)
	}
}

// Stats returns in-memory execution counters for this process lifetime.
func (o *Orchestrator) Stats() (total, successful, failed int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.total, o.successful, o.failed
}
