// Package pipeline runs the background loops of the execution service: the
// plan consumer, the cold-storage archiver, and the daily accounting reset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// defaultConcurrency bounds how many plans execute in parallel.
const defaultConcurrency = 6

// Executor runs one plan end to end. Implemented by the orchestrator.
type Executor interface {
	ExecuteWithRecovery(ctx context.Context, plan domain.ExecutionPlan, maxRetries int) (domain.ExecutionResult, error)
}

// Consumer drains the plan source and hands each plan to the executor with a
// bounded worker pool. Plan failures are terminal per plan and never stop the
// consumer; only context cancellation or a broken plan source does.
type Consumer struct {
	source      domain.PlanSource
	executor    Executor
	concurrency int
	maxRetries  int
	logger      *slog.Logger
}

// NewConsumer creates a Consumer. concurrency <= 0 selects the default of 6.
func NewConsumer(source domain.PlanSource, executor Executor, concurrency, maxRetries int, logger *slog.Logger) *Consumer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Consumer{
		source:      source,
		executor:    executor,
		concurrency: concurrency,
		maxRetries:  maxRetries,
		logger:      logger.With(slog.String("component", "plan_consumer")),
	}
}

// Run consumes plans until ctx is cancelled or the plan source closes. Each
// worker pulls from the shared channel, so a slow plan delays at most one
// worker.
func (c *Consumer) Run(ctx context.Context) error {
	plans, err := c.source.Plans(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: open plan source: %w", err)
	}

	c.logger.Info("plan consumer starting",
		slog.Int("concurrency", c.concurrency),
		slog.Int("max_retries", c.maxRetries),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.concurrency; i++ {
		worker := i
		g.Go(func() error {
			return c.work(ctx, worker, plans)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline: consumer: %w", err)
	}
	c.logger.Info("plan consumer stopped")
	return nil
}

func (c *Consumer) work(ctx context.Context, worker int, plans <-chan domain.ExecutionPlan) error {
	log := c.logger.With(slog.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case plan, ok := <-plans:
			if !ok {
				return nil
			}
			res, err := c.executor.ExecuteWithRecovery(ctx, plan, c.maxRetries)
			switch {
			case err == nil:
				log.Info("plan executed",
					slog.String("plan_id", plan.ID),
					slog.String("tx_hash", res.TxHash),
					slog.Float64("profit_eth", res.ProfitETH),
				)
			case errors.Is(err, context.Canceled):
				return ctx.Err()
			case errors.Is(err, domain.ErrCircuitOpen):
				// The breaker already refused before any external call. The
				// plan is dropped; newly published plans will be refused too
				// until the circuit recovers.
				log.Warn("plan refused by circuit breaker", slog.String("plan_id", plan.ID))
			default:
				log.Error("plan failed",
					slog.String("plan_id", plan.ID),
					slog.String("kind", string(res.Kind)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
