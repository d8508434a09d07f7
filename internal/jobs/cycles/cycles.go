// Package cycles sequences the weekly and monthly strategy runs for one
// tenant. Stage order matters (later stages read earlier outputs) so the
// runner is strictly sequential; independent tenants can run concurrently.
package cycles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	redisclient "github.com/mkovtun/contentpulse-backend/internal/clients/redis"
	planningrepos "github.com/mkovtun/contentpulse-backend/internal/data/repos/planning"
	strategyrepos "github.com/mkovtun/contentpulse-backend/internal/data/repos/strategy"
	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/modules/planning/allocator"
	"github.com/mkovtun/contentpulse-backend/internal/modules/planning/language"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/adjust"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/fatigue"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/monthly"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/signals"
	"github.com/mkovtun/contentpulse-backend/internal/observability"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

const fatigueLookbackDays = 28

const (
	weeklyLeaseTTL  = 30 * time.Minute
	monthlyLeaseTTL = 60 * time.Minute
)

// ErrCycleBusy is returned when another runner already holds the tenant's
// cycle lease. Callers treat it as a skip, not a failure.
var ErrCycleBusy = errors.New("cycles: tenant cycle already running")

type Runner struct {
	log   *logger.Logger
	store *strategyfile.Store
	lease redisclient.CycleLease

	prefs       strategyrepos.PreferenceModelRepo
	adjustments strategyrepos.StrategyAdjustmentRepo
	metrics     strategyrepos.EngagementMetricRepo
	edits       strategyrepos.EditEventRepo
	killed      strategyrepos.KilledIdeaRepo

	series planningrepos.ContentSeriesRepo
	ideas  planningrepos.PlanIdeaRepo
	slots  planningrepos.PlanSlotRepo
	runs   planningrepos.CycleRunRepo
}

type RunnerDeps struct {
	Log         *logger.Logger
	Store       *strategyfile.Store
	Lease       redisclient.CycleLease
	Prefs       strategyrepos.PreferenceModelRepo
	Adjustments strategyrepos.StrategyAdjustmentRepo
	Metrics     strategyrepos.EngagementMetricRepo
	Edits       strategyrepos.EditEventRepo
	Killed      strategyrepos.KilledIdeaRepo
	Series      planningrepos.ContentSeriesRepo
	Ideas       planningrepos.PlanIdeaRepo
	Slots       planningrepos.PlanSlotRepo
	Runs        planningrepos.CycleRunRepo
}

func NewRunner(deps RunnerDeps) (*Runner, error) {
	if deps.Log == nil || deps.Store == nil {
		return nil, fmt.Errorf("cycles: logger and strategy store required")
	}
	if deps.Prefs == nil || deps.Adjustments == nil || deps.Metrics == nil || deps.Runs == nil {
		return nil, fmt.Errorf("cycles: missing repos")
	}
	return &Runner{
		log:         deps.Log.With("service", "CycleRunner"),
		store:       deps.Store,
		lease:       deps.Lease,
		prefs:       deps.Prefs,
		adjustments: deps.Adjustments,
		metrics:     deps.Metrics,
		edits:       deps.Edits,
		killed:      deps.Killed,
		series:      deps.Series,
		ideas:       deps.Ideas,
		slots:       deps.Slots,
		runs:        deps.Runs,
	}, nil
}

// WeeklyResult reports what each stage of the weekly cycle produced.
type WeeklyResult struct {
	RunID          uuid.UUID
	Signals        signals.Summary
	FatiguedTopics int
	Applied        int
	Queued         int
	SlotsPlanned   int
	Degraded       bool
}

// RunWeekly executes aggregation, fatigue, adjustment, allocation and
// language balancing in order. A failed stage degrades the run and is
// recorded; it does not stop the stages after it.
func (r *Runner) RunWeekly(ctx context.Context, tenantID uuid.UUID) (WeeklyResult, error) {
	res := WeeklyResult{}
	now := time.Now().UTC()

	release, err := r.acquireLease(ctx, tenantID, string(types.CycleWeekly), weeklyLeaseTTL)
	if err != nil {
		return res, err
	}
	defer release()

	run, err := r.runs.Start(ctx, nil, tenantID, types.CycleWeekly)
	if err != nil {
		return res, fmt.Errorf("cycles: start weekly run: %w", err)
	}
	res.RunID = run.ID
	stages := map[string]string{}

	summary, err := signals.Compute(ctx, signals.ComputeDeps{
		Log:     r.log,
		Prefs:   r.prefs,
		Metrics: r.metrics,
		Edits:   r.edits,
		Killed:  r.killed,
	}, signals.ComputeInput{TenantID: tenantID, Now: now})
	if err != nil {
		res.Degraded = true
		stages["signals"] = err.Error()
		r.log.Warn("weekly: signal aggregation failed", "tenant_id", tenantID, "error", err.Error())
	} else {
		res.Signals = summary
		stages["signals"] = "ok"
	}

	fatigued, err := r.refreshFatigue(ctx, tenantID, now)
	if err != nil {
		res.Degraded = true
		stages["fatigue"] = err.Error()
		r.log.Warn("weekly: fatigue refresh failed", "tenant_id", tenantID, "error", err.Error())
	} else {
		res.FatiguedTopics = len(fatigued)
		stages["fatigue"] = "ok"
	}

	applied, queued, err := r.runAdjustments(ctx, tenantID, now)
	if err != nil {
		res.Degraded = true
		stages["adjust"] = err.Error()
		r.log.Warn("weekly: adjustment engine failed", "tenant_id", tenantID, "error", err.Error())
	} else {
		res.Applied, res.Queued = applied, queued
		stages["adjust"] = "ok"
	}

	planned, err := r.planWeek(ctx, tenantID, now, fatigued)
	if err != nil {
		res.Degraded = true
		stages["allocate"] = err.Error()
		r.log.Warn("weekly: slot allocation failed", "tenant_id", tenantID, "error", err.Error())
	} else {
		res.SlotsPlanned = planned
		stages["allocate"] = "ok"
	}

	status := types.CycleSucceeded
	if res.Degraded {
		status = types.CycleDegraded
	}
	if err := r.runs.Finish(ctx, nil, run.ID, status, encodeStages(stages), ""); err != nil {
		r.log.Warn("weekly: finish run failed", "run_id", run.ID, "error", err.Error())
	}
	r.log.Info("weekly cycle finished",
		"tenant_id", tenantID,
		"status", string(status),
		"applied", res.Applied,
		"queued", res.Queued,
		"slots", res.SlotsPlanned)
	return res, nil
}

// MonthlyResult reports the monthly superset analysis.
type MonthlyResult struct {
	RunID    uuid.UUID
	Output   monthly.ComputeOutput
	Degraded bool
}

func (r *Runner) RunMonthly(ctx context.Context, tenantID uuid.UUID) (MonthlyResult, error) {
	res := MonthlyResult{}
	now := time.Now().UTC()

	release, err := r.acquireLease(ctx, tenantID, string(types.CycleMonthly), monthlyLeaseTTL)
	if err != nil {
		return res, err
	}
	defer release()

	run, err := r.runs.Start(ctx, nil, tenantID, types.CycleMonthly)
	if err != nil {
		return res, fmt.Errorf("cycles: start monthly run: %w", err)
	}
	res.RunID = run.ID
	stages := map[string]string{}

	out, err := monthly.Compute(ctx, monthly.ComputeDeps{
		Log:         r.log,
		Store:       r.store,
		Metrics:     r.metrics,
		Prefs:       r.prefs,
		Adjustments: r.adjustments,
	}, monthly.ComputeInput{TenantID: tenantID, Now: now})
	if err != nil {
		res.Degraded = true
		stages["analysis"] = err.Error()
		r.log.Warn("monthly: analysis failed", "tenant_id", tenantID, "error", err.Error())
	} else {
		res.Output = out
		stages["analysis"] = "ok"
	}

	status := types.CycleSucceeded
	if res.Degraded {
		status = types.CycleDegraded
	}
	if err := r.runs.Finish(ctx, nil, run.ID, status, encodeStages(stages), ""); err != nil {
		r.log.Warn("monthly: finish run failed", "run_id", run.ID, "error", err.Error())
	}
	r.log.Info("monthly cycle finished",
		"tenant_id", tenantID,
		"status", string(status),
		"queued", res.Output.ProposalsQueued)
	return res, nil
}

// refreshFatigue re-detects fatigued topics from recent engagement and
// persists the merged cooldown list.
func (r *Runner) refreshFatigue(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]types.FatiguedTopic, error) {
	from := now.AddDate(0, 0, -fatigueLookbackDays)
	metrics, err := r.metrics.ListInWindow(ctx, nil, tenantID, from, now)
	if err != nil {
		return nil, err
	}
	posts := make([]fatigue.Post, 0, len(metrics))
	for _, m := range metrics {
		if m == nil || m.PostTopic == "" {
			continue
		}
		posts = append(posts, fatigue.Post{
			Topic:       m.PostTopic,
			Score:       m.EngagementScore,
			PublishedAt: m.PublishedAt,
		})
	}
	detections := fatigue.DetectTopicFatigue(posts)
	if len(detections) > 0 {
		alerts := make([]observability.FatigueAlert, 0, len(detections))
		for _, d := range detections {
			alerts = append(alerts, observability.FatigueAlert{
				Topic:      d.Topic,
				LastScores: d.LastScores,
				Suggestion: d.Suggestion,
			})
		}
		observability.ReportFatigueAlerts(r.log, tenantID.String(), alerts)
	}

	model, err := r.prefs.EnsureForTenant(ctx, nil, tenantID)
	if err != nil {
		return nil, err
	}
	current := []types.FatiguedTopic{}
	_ = json.Unmarshal(model.FatiguedTopics, &current)

	merged := fatigue.UpdateFatiguedTopics(current, detections, fatigue.DefaultCooldownDays, now)
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if err := r.prefs.UpdateFields(ctx, nil, tenantID, map[string]interface{}{
		"fatigued_topics": datatypes.JSON(raw),
	}); err != nil {
		return nil, err
	}
	return merged, nil
}

func (r *Runner) runAdjustments(ctx context.Context, tenantID uuid.UUID, now time.Time) (applied, queued int, err error) {
	model, err := r.prefs.GetByTenant(ctx, nil, tenantID)
	if err != nil {
		return 0, 0, err
	}
	strategy, err := r.store.Load(tenantID)
	if err != nil {
		return 0, 0, err
	}

	totalPosts, err := r.metrics.CountByTenant(ctx, nil, tenantID)
	if err != nil {
		return 0, 0, err
	}
	weeks := 0
	if oldest, err := r.metrics.OldestCollectedAt(ctx, nil, tenantID); err == nil && oldest != nil {
		weeks = int(now.Sub(*oldest).Hours() / (24 * 7))
	}

	proposals := adjust.ComputeAdjustments(adjust.DecodeModel(model), strategy, int(totalPosts), weeks)
	if len(proposals) == 0 {
		return 0, 0, nil
	}
	result, err := adjust.ApplyAutoAdjustments(ctx, adjust.ApplyDeps{
		Log:         r.log,
		Store:       r.store,
		Adjustments: r.adjustments,
	}, tenantID, proposals)
	if err != nil {
		return 0, 0, err
	}
	return len(result.Applied), len(result.Queued), nil
}

// planWeek allocates the upcoming week and persists the new slots with
// language suggestions applied.
func (r *Runner) planWeek(ctx context.Context, tenantID uuid.UUID, now time.Time, fatigued []types.FatiguedTopic) (int, error) {
	if r.series == nil || r.ideas == nil || r.slots == nil {
		return 0, fmt.Errorf("planning repos not configured")
	}
	strategy, err := r.store.Load(tenantID)
	if err != nil {
		return 0, err
	}

	weekStart := nextMonday(now)
	weekEnd := weekStart.AddDate(0, 0, 7)

	scheduled, err := r.slots.ListInRange(ctx, nil, tenantID, weekStart, weekEnd)
	if err != nil {
		return 0, err
	}
	series, err := r.series.ListByTenant(ctx, nil, tenantID)
	if err != nil {
		return 0, err
	}
	ideas, err := r.ideas.ListOpen(ctx, nil, tenantID, 50)
	if err != nil {
		return 0, err
	}
	fresh := make([]*types.PlanIdea, 0, len(ideas))
	for _, idea := range ideas {
		if idea == nil || fatigue.IsTopicFatigued(idea.Topic, fatigued, now) {
			continue
		}
		fresh = append(fresh, idea)
	}

	state := allocator.BuildCalendarState(tenantID, weekStart, scheduled, strategy)
	planned := allocator.Allocate(state, fresh, series, allocator.Options{Strategy: strategy, Now: now})

	history, err := r.languageHistory(ctx, tenantID, now)
	if err != nil {
		r.log.Warn("weekly: language history read failed, using balanced mix", "tenant_id", tenantID, "error", err.Error())
		history = nil
	}
	planned = language.SuggestLanguages(planned, strategy, history)

	if len(planned) == 0 {
		return 0, nil
	}
	rows := make([]*types.PlanSlot, 0, len(planned))
	for i := range planned {
		slot := planned[i]
		slot.ID = uuid.New()
		rows = append(rows, &slot)
	}
	if _, err := r.slots.Create(ctx, nil, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *Runner) languageHistory(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]language.HistoricalPost, error) {
	from := now.AddDate(0, 0, -language.HistoryWindowDays)
	metrics, err := r.metrics.ListInWindow(ctx, nil, tenantID, from, now)
	if err != nil {
		return nil, err
	}
	out := make([]language.HistoricalPost, 0, len(metrics))
	for _, m := range metrics {
		if m == nil {
			continue
		}
		out = append(out, language.HistoricalPost{Language: m.Language, PublishedAt: m.PublishedAt})
	}
	return out, nil
}

// acquireLease serializes a tenant's cycle across runner replicas. Without
// a configured lease the run proceeds unserialized.
func (r *Runner) acquireLease(ctx context.Context, tenantID uuid.UUID, kind string, ttl time.Duration) (func(), error) {
	if r.lease == nil {
		return func() {}, nil
	}
	release, acquired, err := r.lease.Acquire(ctx, tenantID, kind, ttl)
	if err != nil {
		return nil, fmt.Errorf("cycles: lease: %w", err)
	}
	if !acquired {
		return nil, ErrCycleBusy
	}
	return release, nil
}

func nextMonday(now time.Time) time.Time {
	day := now.UTC().Truncate(24 * time.Hour)
	offset := (int(time.Monday) - int(day.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return day.AddDate(0, 0, offset)
}

func encodeStages(stages map[string]string) datatypes.JSON {
	b, _ := json.Marshal(stages)
	return datatypes.JSON(b)
}
