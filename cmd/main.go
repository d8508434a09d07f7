package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mkovtun/contentpulse-backend/internal/clients/redis"
	"github.com/mkovtun/contentpulse-backend/internal/data/db"
	planningrepos "github.com/mkovtun/contentpulse-backend/internal/data/repos/planning"
	strategyrepos "github.com/mkovtun/contentpulse-backend/internal/data/repos/strategy"
	apphttp "github.com/mkovtun/contentpulse-backend/internal/http"
	httpH "github.com/mkovtun/contentpulse-backend/internal/http/handlers"
	httpMW "github.com/mkovtun/contentpulse-backend/internal/http/middleware"
	"github.com/mkovtun/contentpulse-backend/internal/jobs/cycles"
	"github.com/mkovtun/contentpulse-backend/internal/platform/envutil"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
	"github.com/mkovtun/contentpulse-backend/internal/temporalx"
	"github.com/mkovtun/contentpulse-backend/internal/temporalx/temporalworker"
)

func main() {
	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Strategy store
	store, err := strategyfile.NewStore(envutil.String("STRATEGY_DIR", "./strategies"))
	if err != nil {
		log.Error("Could not init strategy store", "error", err)
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up repos from main...")
	prefRepo := strategyrepos.NewPreferenceModelRepo(thePG, log)
	adjustmentRepo := strategyrepos.NewStrategyAdjustmentRepo(thePG, log)
	metricRepo := strategyrepos.NewEngagementMetricRepo(thePG, log)
	editRepo := strategyrepos.NewEditEventRepo(thePG, log)
	killedRepo := strategyrepos.NewKilledIdeaRepo(thePG, log)
	seriesRepo := planningrepos.NewContentSeriesRepo(thePG, log)
	ideaRepo := planningrepos.NewPlanIdeaRepo(thePG, log)
	slotRepo := planningrepos.NewPlanSlotRepo(thePG, log)
	runRepo := planningrepos.NewCycleRunRepo(thePG, log)

	// Redis lease (optional; cycles run unserialized without it)
	lease, err := redis.NewCycleLease(log)
	if err != nil {
		log.Warn("Redis lease unavailable; cycles run without per-tenant leases", "error", err)
		lease = nil
	} else {
		defer lease.Close()
	}

	// Cycle runner
	runner, err := cycles.NewRunner(cycles.RunnerDeps{
		Log:         log,
		Store:       store,
		Lease:       lease,
		Prefs:       prefRepo,
		Adjustments: adjustmentRepo,
		Metrics:     metricRepo,
		Edits:       editRepo,
		Killed:      killedRepo,
		Series:      seriesRepo,
		Ideas:       ideaRepo,
		Slots:       slotRepo,
		Runs:        runRepo,
	})
	if err != nil {
		log.Error("Could not init cycle runner", "error", err)
		os.Exit(1)
	}

	// Temporal (optional)
	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("Temporal client init failed", "error", err)
		os.Exit(1)
	}
	if tc != nil {
		defer tc.Close()
		worker, err := temporalworker.NewRunner(log, tc, runner)
		if err != nil {
			log.Error("Could not init Temporal worker", "error", err)
			os.Exit(1)
		}
		if err := worker.Start(context.Background()); err != nil {
			log.Error("Temporal worker start failed", "error", err)
			os.Exit(1)
		}
	}

	// Middleware
	authMiddleware, err := httpMW.NewAuthMiddleware(log)
	if err != nil {
		log.Error("Could not init auth middleware", "error", err)
		os.Exit(1)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	adjustmentHandler := httpH.NewAdjustmentHandler(log, store, adjustmentRepo)
	preferenceHandler := httpH.NewPreferenceHandler(log, prefRepo)
	planHandler := httpH.NewPlanHandler(log, slotRepo)
	cycleHandler := httpH.NewCycleHandler(log, tc, runner)
	healthHandler := httpH.NewHealthHandler()

	// Router
	log.Info("Setting up router from main...")
	server := apphttp.NewServer(apphttp.RouterConfig{
		AuthMiddleware:    authMiddleware,
		AdjustmentHandler: adjustmentHandler,
		PreferenceHandler: preferenceHandler,
		PlanHandler:       planHandler,
		CycleHandler:      cycleHandler,
		HealthHandler:     healthHandler,
	})

	addr := envutil.String("HTTP_ADDR", ":8080")
	log.Info("Starting HTTP server", "addr", addr)
	if err := server.Run(addr); err != nil {
		log.Fatal("HTTP server exited", "error", err)
	}
}
