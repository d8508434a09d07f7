// Package cyclerun hosts the Temporal workflows that drive per tenant
// strategy cycles. Each workflow is a thin wrapper around one activity; the
// activity owns the lease and the stage sequencing.
package cyclerun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	WeeklyWorkflowName  = "weekly-cycle"
	MonthlyWorkflowName = "monthly-cycle"

	ActivityRunWeekly  = "cyclerun.RunWeekly"
	ActivityRunMonthly = "cyclerun.RunMonthly"
)

// CycleInput identifies the tenant a cycle runs for.
type CycleInput struct {
	TenantID string `json:"tenant_id"`
}

// CycleResult is the activity's summary back to the workflow history.
type CycleResult struct {
	RunID    string `json:"run_id"`
	Status   string `json:"status"`
	Skipped  bool   `json:"skipped"`
	Degraded bool   `json:"degraded"`
}

func WeeklyCycleWorkflow(ctx workflow.Context, input CycleInput) error {
	return runCycle(ctx, input, ActivityRunWeekly, 30*time.Minute)
}

func MonthlyCycleWorkflow(ctx workflow.Context, input CycleInput) error {
	return runCycle(ctx, input, ActivityRunMonthly, 60*time.Minute)
}

func runCycle(ctx workflow.Context, input CycleInput, activityName string, timeout time.Duration) error {
	if strings.TrimSpace(input.TenantID) == "" {
		return fmt.Errorf("cyclerun: missing tenant_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 30 * time.Second,
			MaximumAttempts: 3,
		},
	})

	var out CycleResult
	if err := workflow.ExecuteActivity(ctx, activityName, input).Get(ctx, &out); err != nil {
		return err
	}
	if out.Skipped {
		workflow.GetLogger(ctx).Info("cycle skipped, lease held elsewhere", "tenant_id", input.TenantID)
	}
	return nil
}
