package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	strategyrepos "github.com/mkovtun/contentpulse-backend/internal/data/repos/strategy"
	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/http/response"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/locks"
	"github.com/mkovtun/contentpulse-backend/internal/pkg/ctxutil"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type PreferenceHandler struct {
	log   *logger.Logger
	prefs strategyrepos.PreferenceModelRepo
}

func NewPreferenceHandler(log *logger.Logger, prefs strategyrepos.PreferenceModelRepo) *PreferenceHandler {
	return &PreferenceHandler{log: log, prefs: prefs}
}

// GET /api/preference-model
func (h *PreferenceHandler) GetPreferenceModel(c *gin.Context) {
	tenantID := ctxutil.TenantID(c.Request.Context())
	model, err := h.prefs.GetByTenant(c.Request.Context(), nil, tenantID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "preference_model_read_failed", err)
		return
	}
	if model == nil {
		response.RespondError(c, http.StatusNotFound, "preference_model_not_found", fmt.Errorf("no preference model yet"))
		return
	}
	response.RespondOK(c, gin.H{"preference_model": model})
}

type lockRequest struct {
	Field string      `json:"field" binding:"required"`
	Value interface{} `json:"value"`
}

// POST /api/locks
func (h *PreferenceHandler) LockSetting(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_lock_request", err)
		return
	}
	h.mutateLocks(c, func(current []types.LockedSetting) []types.LockedSetting {
		return locks.Lock(current, strings.TrimSpace(req.Field), req.Value, time.Now().UTC())
	})
}

type unlockRequest struct {
	Field string `json:"field" binding:"required"`
}

// POST /api/locks/remove
func (h *PreferenceHandler) UnlockSetting(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_unlock_request", err)
		return
	}
	h.mutateLocks(c, func(current []types.LockedSetting) []types.LockedSetting {
		return locks.Unlock(current, strings.TrimSpace(req.Field))
	})
}

func (h *PreferenceHandler) mutateLocks(c *gin.Context, fn func([]types.LockedSetting) []types.LockedSetting) {
	tenantID := ctxutil.TenantID(c.Request.Context())
	model, err := h.prefs.EnsureForTenant(c.Request.Context(), nil, tenantID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "preference_model_read_failed", err)
		return
	}
	updated := fn(locks.Decode(model.LockedSettings))
	if err := h.prefs.UpdateFields(c.Request.Context(), nil, tenantID, map[string]interface{}{
		"locked_settings": locks.Encode(updated),
	}); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "lock_update_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"locked_settings": updated})
}
