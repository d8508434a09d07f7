package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	temporalsdkclient "go.temporal.io/sdk/client"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/http/response"
	"github.com/mkovtun/contentpulse-backend/internal/jobs/cycles"
	"github.com/mkovtun/contentpulse-backend/internal/pkg/ctxutil"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
	"github.com/mkovtun/contentpulse-backend/internal/temporalx"
	"github.com/mkovtun/contentpulse-backend/internal/temporalx/cyclerun"
)

type CycleHandler struct {
	log    *logger.Logger
	tc     temporalsdkclient.Client
	runner *cycles.Runner
}

func NewCycleHandler(log *logger.Logger, tc temporalsdkclient.Client, runner *cycles.Runner) *CycleHandler {
	return &CycleHandler{log: log, tc: tc, runner: runner}
}

// POST /api/cycles/:kind
//
// Dispatches through Temporal when configured; otherwise runs the cycle
// inline so single-node deployments still work.
func (h *CycleHandler) TriggerCycle(c *gin.Context) {
	tenantID := ctxutil.TenantID(c.Request.Context())
	kind := types.CycleKind(strings.TrimSpace(c.Param("kind")))
	if kind != types.CycleWeekly && kind != types.CycleMonthly {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_kind", fmt.Errorf("unknown cycle kind %q", kind))
		return
	}

	if h.tc != nil {
		cfg := temporalx.LoadConfig()
		workflowName := cyclerun.WeeklyWorkflowName
		if kind == types.CycleMonthly {
			workflowName = cyclerun.MonthlyWorkflowName
		}
		run, err := h.tc.ExecuteWorkflow(c.Request.Context(), temporalsdkclient.StartWorkflowOptions{
			ID:        fmt.Sprintf("%s-%s", workflowName, tenantID),
			TaskQueue: cfg.TaskQueue,
		}, workflowName, cyclerun.CycleInput{TenantID: tenantID.String()})
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "cycle_dispatch_failed", err)
			return
		}
		response.RespondOK(c, gin.H{"workflow_id": run.GetID(), "run_id": run.GetRunID()})
		return
	}

	if kind == types.CycleMonthly {
		res, err := h.runner.RunMonthly(c.Request.Context(), tenantID)
		if errors.Is(err, cycles.ErrCycleBusy) {
			response.RespondError(c, http.StatusConflict, "cycle_busy", err)
			return
		}
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "cycle_failed", err)
			return
		}
		response.RespondOK(c, gin.H{"run_id": res.RunID, "queued": res.Output.ProposalsQueued, "degraded": res.Degraded})
		return
	}
	res, err := h.runner.RunWeekly(c.Request.Context(), tenantID)
	if errors.Is(err, cycles.ErrCycleBusy) {
		response.RespondError(c, http.StatusConflict, "cycle_busy", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "cycle_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"run_id":   res.RunID,
		"applied":  res.Applied,
		"queued":   res.Queued,
		"slots":    res.SlotsPlanned,
		"degraded": res.Degraded,
	})
}
