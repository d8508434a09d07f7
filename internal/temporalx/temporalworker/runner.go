package temporalworker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/mkovtun/contentpulse-backend/internal/jobs/cycles"
	"github.com/mkovtun/contentpulse-backend/internal/platform/envutil"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
	"github.com/mkovtun/contentpulse-backend/internal/temporalx"
	"github.com/mkovtun/contentpulse-backend/internal/temporalx/cyclerun"
)

type Runner struct {
	log    *logger.Logger
	tc     temporalsdkclient.Client
	cycles *cycles.Runner
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cycleRunner *cycles.Runner) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if cycleRunner == nil {
		return nil, fmt.Errorf("temporal worker missing cycle runner")
	}
	return &Runner{log: log, tc: tc, cycles: cycleRunner}, nil
}

// Start brings the worker up with bounded retries and stops it when ctx ends.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	cfg := temporalx.LoadConfig()
	if r.log != nil {
		r.log.Info("Starting Temporal worker", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}

	maxWait := 60 * time.Second
	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		w := r.newWorker(cfg)
		startErr := w.Start()
		if startErr == nil {
			if ctx != nil {
				go func() {
					<-ctx.Done()
					w.Stop()
				}()
			}
			if r.log != nil {
				r.log.Info("Temporal worker started", "task_queue", cfg.TaskQueue, "attempts", attempt)
			}
			return nil
		}
		w.Stop()

		if time.Now().After(deadline) {
			return startErr
		}
		if r.log != nil {
			r.log.Warn("Temporal worker failed to start; retrying", "task_queue", cfg.TaskQueue, "attempt", attempt, "error", startErr)
		}
		time.Sleep(time.Duration(attempt) * 250 * time.Millisecond)
	}
}

func (r *Runner) newWorker(cfg temporalx.Config) worker.Worker {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	acts := &cyclerun.Activities{
		Log:    r.log,
		Runner: r.cycles,
	}

	w.RegisterWorkflowWithOptions(cyclerun.WeeklyCycleWorkflow, workflow.RegisterOptions{Name: cyclerun.WeeklyWorkflowName})
	w.RegisterWorkflowWithOptions(cyclerun.MonthlyCycleWorkflow, workflow.RegisterOptions{Name: cyclerun.MonthlyWorkflowName})
	w.RegisterActivityWithOptions(acts.RunWeekly, activity.RegisterOptions{Name: cyclerun.ActivityRunWeekly})
	w.RegisterActivityWithOptions(acts.RunMonthly, activity.RegisterOptions{Name: cyclerun.ActivityRunMonthly})
	return w
}
