package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// PlanHandler accepts execution plans over HTTP and publishes them onto the
// plan bus. Used by the replay tooling and for manual plan injection.
type PlanHandler struct {
	bus    domain.PlanBus
	logger *slog.Logger
}

// NewPlanHandler creates a PlanHandler.
func NewPlanHandler(bus domain.PlanBus, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{
		bus:    bus,
		logger: logHandler(logger, "plan"),
	}
}

// PublishPlan validates and publishes a plan.
// POST /api/plans
func (h *PlanHandler) PublishPlan(w http.ResponseWriter, r *http.Request) {
	var plan domain.ExecutionPlan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan JSON: "+err.Error())
		return
	}

	if len(plan.Routes) == 0 {
		writeError(w, http.StatusBadRequest, "plan must have at least one route")
		return
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	if err := h.bus.PublishPlan(r.Context(), plan); err != nil {
		h.logger.ErrorContext(r.Context(), "publish plan failed",
			slog.String("plan_id", plan.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to publish plan")
		return
	}

	h.logger.InfoContext(r.Context(), "plan published",
		slog.String("plan_id", plan.ID),
		slog.String("strategy", plan.Strategy),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"plan_id": plan.ID})
}
