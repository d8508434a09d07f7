package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	strategyrepos "github.com/mkovtun/contentpulse-backend/internal/data/repos/strategy"
	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/http/response"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/adjust"
	"github.com/mkovtun/contentpulse-backend/internal/pkg/ctxutil"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

type AdjustmentHandler struct {
	log         *logger.Logger
	store       *strategyfile.Store
	adjustments strategyrepos.StrategyAdjustmentRepo
}

func NewAdjustmentHandler(log *logger.Logger, store *strategyfile.Store, adjustments strategyrepos.StrategyAdjustmentRepo) *AdjustmentHandler {
	return &AdjustmentHandler{log: log, store: store, adjustments: adjustments}
}

// GET /api/adjustments?status=pending
func (h *AdjustmentHandler) ListAdjustments(c *gin.Context) {
	tenantID := ctxutil.TenantID(c.Request.Context())
	status := types.AdjustmentStatus(strings.TrimSpace(c.Query("status")))

	rows, err := h.adjustments.ListByTenant(c.Request.Context(), nil, tenantID, status, 100)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_adjustments_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"adjustments": rows})
}

// POST /api/adjustments/:id/approve
func (h *AdjustmentHandler) ApproveAdjustment(c *gin.Context) {
	h.decide(c, adjust.Approve, "approve_adjustment_failed")
}

// POST /api/adjustments/:id/reject
func (h *AdjustmentHandler) RejectAdjustment(c *gin.Context) {
	h.decide(c, adjust.Reject, "reject_adjustment_failed")
}

func (h *AdjustmentHandler) decide(c *gin.Context, fn func(ctx context.Context, deps adjust.ApplyDeps, id uuid.UUID) error, code string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_adjustment_id", err)
		return
	}
	row, err := h.adjustments.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, code, err)
		return
	}
	if row == nil {
		response.RespondError(c, http.StatusNotFound, "adjustment_not_found", fmt.Errorf("adjustment %s not found", id))
		return
	}
	if row.TenantID != ctxutil.TenantID(c.Request.Context()) {
		response.RespondError(c, http.StatusForbidden, "forbidden", fmt.Errorf("adjustment belongs to another tenant"))
		return
	}
	deps := adjust.ApplyDeps{Log: h.log, Store: h.store, Adjustments: h.adjustments}
	if err := fn(c.Request.Context(), deps, id); err != nil {
		status := http.StatusBadRequest
		if strings.Contains(strings.ToLower(err.Error()), "not pending") {
			status = http.StatusConflict
		}
		response.RespondError(c, status, code, err)
		return
	}
	updated, err := h.adjustments.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "adjustment_reload_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"adjustment": updated})
}
