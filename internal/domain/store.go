package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ExecutionStore persists execution results.
type ExecutionStore interface {
	Create(ctx context.Context, result ExecutionResult) error
	GetByPlanID(ctx context.Context, planID string) (ExecutionResult, error)
	ListRecent(ctx context.Context, limit int) ([]ExecutionResult, error)
	Stats(ctx context.Context) (ExecutionStats, error)
}

// LedgerEntry is one row of the profit ledger.
type LedgerEntry struct {
	ID         string    `json:"id"`
	PlanID     string    `json:"plan_id"`
	Strategy   string    `json:"strategy"`
	TxHash     string    `json:"tx_hash"`
	ProfitETH  float64   `json:"profit_eth"`
	GasCostETH float64   `json:"gas_cost_eth"`
	CreatedAt  time.Time `json:"created_at"`
}

// LedgerStore persists the profit ledger. Entries are append-only; totals
// are computed over the stored rows.
type LedgerStore interface {
	Record(ctx context.Context, entry LedgerEntry) error
	List(ctx context.Context, opts ListOpts) ([]LedgerEntry, error)
	Totals(ctx context.Context) (profitETH, gasETH float64, err error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log. Terminal failures and breaker
// state changes are reported here exactly once.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
