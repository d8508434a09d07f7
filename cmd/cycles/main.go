// Scheduler binary. Fires the weekly and monthly cycles on cron schedules
// and fans out across tenants with bounded concurrency. Deployments running
// Temporal can use its schedules instead and skip this binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"

	"github.com/mkovtun/contentpulse-backend/internal/clients/redis"
	"github.com/mkovtun/contentpulse-backend/internal/data/db"
	planningrepos "github.com/mkovtun/contentpulse-backend/internal/data/repos/planning"
	strategyrepos "github.com/mkovtun/contentpulse-backend/internal/data/repos/strategy"
	"github.com/mkovtun/contentpulse-backend/internal/jobs/cycles"
	"github.com/mkovtun/contentpulse-backend/internal/platform/envutil"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

func main() {
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	store, err := strategyfile.NewStore(envutil.String("STRATEGY_DIR", "./strategies"))
	if err != nil {
		log.Error("Could not init strategy store", "error", err)
		os.Exit(1)
	}

	lease, err := redis.NewCycleLease(log)
	if err != nil {
		log.Warn("Redis lease unavailable; cycles run without per-tenant leases", "error", err)
		lease = nil
	} else {
		defer lease.Close()
	}

	runner, err := cycles.NewRunner(cycles.RunnerDeps{
		Log:         log,
		Store:       store,
		Lease:       lease,
		Prefs:       strategyrepos.NewPreferenceModelRepo(thePG, log),
		Adjustments: strategyrepos.NewStrategyAdjustmentRepo(thePG, log),
		Metrics:     strategyrepos.NewEngagementMetricRepo(thePG, log),
		Edits:       strategyrepos.NewEditEventRepo(thePG, log),
		Killed:      strategyrepos.NewKilledIdeaRepo(thePG, log),
		Series:      planningrepos.NewContentSeriesRepo(thePG, log),
		Ideas:       planningrepos.NewPlanIdeaRepo(thePG, log),
		Slots:       planningrepos.NewPlanSlotRepo(thePG, log),
		Runs:        planningrepos.NewCycleRunRepo(thePG, log),
	})
	if err != nil {
		log.Error("Could not init cycle runner", "error", err)
		os.Exit(1)
	}

	weeklySpec := envutil.String("WEEKLY_CYCLE_SPEC", "0 0 6 * * MON")
	monthlySpec := envutil.String("MONTHLY_CYCLE_SPEC", "0 0 7 1 * *")
	concurrency := envutil.Int("CYCLE_CONCURRENCY", 4)

	c := cron.New()
	if err := c.AddFunc(weeklySpec, func() {
		runAllTenants(log, store, concurrency, "weekly", func(ctx context.Context, tenantID uuid.UUID) error {
			_, err := runner.RunWeekly(ctx, tenantID)
			return err
		})
	}); err != nil {
		log.Error("Invalid weekly cron spec", "spec", weeklySpec, "error", err)
		os.Exit(1)
	}
	if err := c.AddFunc(monthlySpec, func() {
		runAllTenants(log, store, concurrency, "monthly", func(ctx context.Context, tenantID uuid.UUID) error {
			_, err := runner.RunMonthly(ctx, tenantID)
			return err
		})
	}); err != nil {
		log.Error("Invalid monthly cron spec", "spec", monthlySpec, "error", err)
		os.Exit(1)
	}

	log.Info("Cycle scheduler started", "weekly", weeklySpec, "monthly", monthlySpec)
	c.Run()
}

func runAllTenants(log *logger.Logger, store *strategyfile.Store, concurrency int, kind string, fn func(context.Context, uuid.UUID) error) {
	tenants, err := store.Tenants()
	if err != nil {
		log.Error("Tenant listing failed", "kind", kind, "error", err)
		return
	}
	if len(tenants) == 0 {
		log.Info("No tenants configured", "kind", kind)
		return
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(concurrency)
	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			switch err := fn(ctx, tenant); {
			case errors.Is(err, cycles.ErrCycleBusy):
				log.Info("Cycle already running elsewhere; skipped", "kind", kind, "tenant_id", tenant)
			case err != nil:
				log.Warn("Cycle failed", "kind", kind, "tenant_id", tenant, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
	log.Info("Cycle fan-out finished", "kind", kind, "tenants", len(tenants))
}
