package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Create inserts an execution result. A plan is executed at most once, so a
// duplicate plan ID is an error rather than an upsert.
func (s *ExecutionStore) Create(ctx context.Context, result domain.ExecutionResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO execution_results (plan_id, submission_id, tx_hash, status, profit_eth, loss_eth, gas_used, error_kind, error_message, breaker_blocked, latency_ms, submitted_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		result.PlanID, result.SubmissionID, result.TxHash, string(result.Status),
		result.ProfitETH, result.LossETH, int64(result.GasUsed),
		string(result.Kind), result.Err, result.BreakerBlocked,
		float64(result.Latency)/float64(time.Millisecond),
		result.SubmittedAt, result.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution_result %s: %w", result.PlanID, err)
	}
	return nil
}

// GetByPlanID returns the stored result for a plan.
func (s *ExecutionStore) GetByPlanID(ctx context.Context, planID string) (domain.ExecutionResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT plan_id, submission_id, tx_hash, status, profit_eth, loss_eth, gas_used, error_kind, error_message, breaker_blocked, latency_ms, submitted_at, confirmed_at
		FROM execution_results WHERE plan_id = $1`, planID)
	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionResult{}, domain.ErrNotFound
		}
		return domain.ExecutionResult{}, fmt.Errorf("postgres: get execution_result %s: %w", planID, err)
	}
	return result, nil
}

// ListRecent returns the most recent execution results.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT plan_id, submission_id, tx_hash, status, profit_eth, loss_eth, gas_used, error_kind, error_message, breaker_blocked, latency_ms, submitted_at, confirmed_at
		FROM execution_results ORDER BY submitted_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list execution_results: %w", err)
	}
	defer rows.Close()

	var list []domain.ExecutionResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution_result: %w", err)
		}
		list = append(list, result)
	}
	return list, rows.Err()
}

// ListBefore returns all results submitted strictly before the cutoff.
// Serves the cold-storage archiver.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT plan_id, submission_id, tx_hash, status, profit_eth, loss_eth, gas_used, error_kind, error_message, breaker_blocked, latency_ms, submitted_at, confirmed_at
		FROM execution_results WHERE submitted_at < $1 ORDER BY submitted_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list execution_results before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var list []domain.ExecutionResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution_result: %w", err)
		}
		list = append(list, result)
	}
	return list, rows.Err()
}

// Stats aggregates all recorded results.
func (s *ExecutionStore) Stats(ctx context.Context) (domain.ExecutionStats, error) {
	var stats domain.ExecutionStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'confirmed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COALESCE(SUM(profit_eth), 0),
		       COALESCE(SUM(loss_eth), 0),
		       COALESCE(AVG(latency_ms), 0)
		FROM execution_results`,
	).Scan(&stats.Total, &stats.Confirmed, &stats.Failed,
		&stats.TotalProfitETH, &stats.TotalLossETH, &stats.AvgLatencyMs)
	if err != nil {
		return domain.ExecutionStats{}, fmt.Errorf("postgres: execution stats: %w", err)
	}
	return stats, nil
}

func scanResult(row pgx.Row) (domain.ExecutionResult, error) {
	var r domain.ExecutionResult
	var status, kind string
	var gasUsed int64
	var latencyMs float64
	err := row.Scan(&r.PlanID, &r.SubmissionID, &r.TxHash, &status,
		&r.ProfitETH, &r.LossETH, &gasUsed, &kind, &r.Err,
		&r.BreakerBlocked, &latencyMs, &r.SubmittedAt, &r.ConfirmedAt)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	r.Status = domain.ExecutionStatus(status)
	r.Kind = domain.ErrorKind(kind)
	r.GasUsed = uint64(gasUsed)
	r.Latency = time.Duration(latencyMs * float64(time.Millisecond))
	return r, nil
}
