package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// ExecutionHandler serves execution history and aggregate stats.
type ExecutionHandler struct {
	store  domain.ExecutionStore
	ledger domain.LedgerStore
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler.
func NewExecutionHandler(store domain.ExecutionStore, ledger domain.LedgerStore, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		store:  store,
		ledger: ledger,
		logger: logHandler(logger, "execution"),
	}
}

// ListRecent responds with the most recent execution results.
// GET /api/executions?limit=N
func (h *ExecutionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list executions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	if results == nil {
		results = []domain.ExecutionResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(results),
		"executions": results,
	})
}

// GetByPlanID responds with the stored result for one plan.
// GET /api/executions/{plan_id}
func (h *ExecutionHandler) GetByPlanID(w http.ResponseWriter, r *http.Request) {
	planID := pathParam(r, "plan_id")
	result, err := h.store.GetByPlanID(r.Context(), planID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get execution failed",
			slog.String("plan_id", planID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Stats responds with aggregate execution stats and ledger totals.
// GET /api/executions/stats
func (h *ExecutionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "execution stats failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	profit, gas, err := h.ledger.Totals(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ledger totals failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to compute ledger totals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":             stats.Total,
		"confirmed":         stats.Confirmed,
		"failed":            stats.Failed,
		"total_profit_eth":  stats.TotalProfitETH,
		"total_loss_eth":    stats.TotalLossETH,
		"avg_latency_ms":    stats.AvgLatencyMs,
		"ledger_profit_eth": profit,
		"ledger_gas_eth":    gas,
	})
}

// ListLedger responds with profit ledger entries.
// GET /api/ledger
func (h *ExecutionHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list ledger failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list ledger")
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}
