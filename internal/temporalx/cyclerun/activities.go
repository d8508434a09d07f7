package cyclerun

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/jobs/cycles"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type Activities struct {
	Log    *logger.Logger
	Runner *cycles.Runner
}

func (a *Activities) RunWeekly(ctx context.Context, input CycleInput) (CycleResult, error) {
	return a.run(ctx, input, string(types.CycleWeekly), func(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, bool, error) {
		res, err := a.Runner.RunWeekly(ctx, tenantID)
		return res.RunID, res.Degraded, err
	})
}

func (a *Activities) RunMonthly(ctx context.Context, input CycleInput) (CycleResult, error) {
	return a.run(ctx, input, string(types.CycleMonthly), func(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, bool, error) {
		res, err := a.Runner.RunMonthly(ctx, tenantID)
		return res.RunID, res.Degraded, err
	})
}

func (a *Activities) run(ctx context.Context, input CycleInput, kind string, fn func(context.Context, uuid.UUID) (uuid.UUID, bool, error)) (CycleResult, error) {
	res := CycleResult{}
	if a == nil || a.Runner == nil {
		return res, fmt.Errorf("cyclerun: activity not configured")
	}
	tenantID, err := uuid.Parse(strings.TrimSpace(input.TenantID))
	if err != nil || tenantID == uuid.Nil {
		return res, fmt.Errorf("cyclerun: invalid tenant_id")
	}

	activity.RecordHeartbeat(ctx, kind)
	runID, degraded, err := fn(ctx, tenantID)
	if errors.Is(err, cycles.ErrCycleBusy) {
		res.Skipped = true
		res.Status = "skipped"
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.RunID = runID.String()
	res.Degraded = degraded
	res.Status = string(types.CycleSucceeded)
	if degraded {
		res.Status = string(types.CycleDegraded)
	}
	return res, nil
}
