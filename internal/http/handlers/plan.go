package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	planningrepos "github.com/mkovtun/contentpulse-backend/internal/data/repos/planning"
	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/http/response"
	"github.com/mkovtun/contentpulse-backend/internal/pkg/ctxutil"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type PlanHandler struct {
	log   *logger.Logger
	slots planningrepos.PlanSlotRepo
}

func NewPlanHandler(log *logger.Logger, slots planningrepos.PlanSlotRepo) *PlanHandler {
	return &PlanHandler{log: log, slots: slots}
}

// GET /api/plan/week?start=2026-09-07
func (h *PlanHandler) GetWeekPlan(c *gin.Context) {
	tenantID := ctxutil.TenantID(c.Request.Context())

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := strings.TrimSpace(c.Query("start")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_start_date", err)
			return
		}
		start = parsed.UTC()
	}
	end := start.AddDate(0, 0, 7)

	rows, err := h.slots.ListInRange(c.Request.Context(), nil, tenantID, start, end)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_slots_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"week_start": start.Format("2006-01-02"), "slots": rows})
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// POST /api/slots/:id/transition
func (h *PlanHandler) TransitionSlot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_slot_id", err)
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_transition_request", err)
		return
	}
	next := types.SlotStatus(strings.TrimSpace(req.Status))
	if err := h.slots.Transition(c.Request.Context(), nil, id, next); err != nil {
		status := http.StatusBadRequest
		if strings.Contains(strings.ToLower(err.Error()), "illegal transition") {
			status = http.StatusConflict
		}
		response.RespondError(c, status, "slot_transition_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"slot_id": id, "status": next})
}
