package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Record appends a ledger entry. A missing ID is assigned here so callers can
// stay oblivious to row identity.
func (s *LedgerStore) Record(ctx context.Context, entry domain.LedgerEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profit_ledger (id, plan_id, strategy, tx_hash, profit_eth, gas_cost_eth)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, entry.PlanID, entry.Strategy, entry.TxHash, entry.ProfitETH, entry.GasCostETH,
	)
	if err != nil {
		return fmt.Errorf("postgres: record ledger entry for plan %s: %w", entry.PlanID, err)
	}
	return nil
}

// List returns ledger entries with pagination and optional time filtering.
func (s *LedgerStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	query := `SELECT id, plan_id, strategy, tx_hash, profit_eth, gas_cost_eth, created_at FROM profit_ledger WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.PlanID, &e.Strategy, &e.TxHash, &e.ProfitETH, &e.GasCostETH, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Totals sums realized profit and gas cost over the whole ledger.
func (s *LedgerStore) Totals(ctx context.Context) (float64, float64, error) {
	var profit, gas float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(profit_eth), 0), COALESCE(SUM(gas_cost_eth), 0) FROM profit_ledger`,
	).Scan(&profit, &gas)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: ledger totals: %w", err)
	}
	return profit, gas, nil
}
