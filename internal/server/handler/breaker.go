package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// BreakerControl is the surface the handler needs from the circuit breaker.
type BreakerControl interface {
	Status() domain.BreakerStatus
	RecentErrors(limit int) []domain.ErrorEvent
	AttemptRecovery() (bool, string)
	ConfirmRecovery()
	ReopenCircuit()
	ResetDailyLoss()
}

// BreakerHandler serves breaker observability and the operator controls for
// the recovery cycle.
type BreakerHandler struct {
	breaker BreakerControl
	logger  *slog.Logger
}

// NewBreakerHandler creates a BreakerHandler.
func NewBreakerHandler(breaker BreakerControl, logger *slog.Logger) *BreakerHandler {
	return &BreakerHandler{
		breaker: breaker,
		logger:  logHandler(logger, "breaker"),
	}
}

// GetStatus responds with the current breaker snapshot.
// GET /api/breaker/status
func (h *BreakerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.breaker.Status())
}

// ListErrors responds with the most recent error events, oldest first.
// GET /api/breaker/errors?limit=N
func (h *BreakerHandler) ListErrors(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events := h.breaker.RecentErrors(limit)
	if events == nil {
		events = []domain.ErrorEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

// AttemptRecovery moves an OPEN circuit to HALF_OPEN once the recovery
// timeout has elapsed.
// POST /api/breaker/recover
func (h *BreakerHandler) AttemptRecovery(w http.ResponseWriter, r *http.Request) {
	ok, reason := h.breaker.AttemptRecovery()
	h.logger.InfoContext(r.Context(), "recovery attempt requested",
		slog.Bool("transitioned", ok),
		slog.String("reason", reason),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"transitioned": ok,
		"reason":       reason,
		"status":       h.breaker.Status(),
	})
}

// ConfirmRecovery closes a HALF_OPEN circuit after the operator has verified
// conditions are healthy again.
// POST /api/breaker/confirm
func (h *BreakerHandler) ConfirmRecovery(w http.ResponseWriter, r *http.Request) {
	h.breaker.ConfirmRecovery()
	h.logger.InfoContext(r.Context(), "recovery confirmed")
	writeJSON(w, http.StatusOK, h.breaker.Status())
}

// Reopen trips the circuit back OPEN from HALF_OPEN when the trial period
// shows the underlying problem persists.
// POST /api/breaker/reopen
func (h *BreakerHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.breaker.ReopenCircuit()
	h.logger.WarnContext(r.Context(), "circuit reopened by operator")
	writeJSON(w, http.StatusOK, h.breaker.Status())
}

// ResetDailyLoss zeroes the accumulated daily loss at an explicit boundary.
// POST /api/breaker/reset-daily
func (h *BreakerHandler) ResetDailyLoss(w http.ResponseWriter, r *http.Request) {
	h.breaker.ResetDailyLoss()
	h.logger.InfoContext(r.Context(), "daily loss reset by operator")
	writeJSON(w, http.StatusOK, h.breaker.Status())
}
