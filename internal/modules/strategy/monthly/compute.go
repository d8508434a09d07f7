// Package monthly runs the longer-horizon superset analysis: audience-signal
// deltas, drift between configured weights and observed engagement, and a
// risk-budget look at how this month's auto-adjustments correlated with
// outcomes. Everything it proposes is approval-tier; nothing here ever
// auto-applies.
package monthly

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/adjust"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/locks"
	"github.com/mkovtun/contentpulse-backend/internal/observability"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

const (
	// growthDelta / declineDelta are the audience-signal thresholds for
	// synthesizing new-pillar and drop-format proposals.
	growthDelta  = 0.50
	declineDelta = -0.30

	// driftThreshold is the absolute gap between a pillar's configured
	// weight share and its observed engagement share that counts as drift.
	driftThreshold = 0.15

	// riskDeclineThreshold marks an auto-adjustment as suspect when mean
	// engagement after it fell by more than this fraction.
	riskDeclineThreshold = 0.15

	minSamplesPerSide = 3
)

type ComputeDeps struct {
	Log   *logger.Logger
	Store *strategyfile.Store
	Metrics interface {
		ListInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.EngagementMetric, error)
	}
	Prefs interface {
		GetByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*types.PreferenceModel, error)
	}
	Adjustments interface {
		Create(ctx context.Context, tx *gorm.DB, rows []*types.StrategyAdjustment) ([]*types.StrategyAdjustment, error)
		ListAppliedSince(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, since time.Time) ([]*types.StrategyAdjustment, error)
	}
}

type ComputeInput struct {
	TenantID   uuid.UUID
	WindowDays int
	Now        time.Time
}

type ComputeOutput struct {
	WindowStart     time.Time
	WindowEnd       time.Time
	NewPillars      int
	DropFormats     int
	DriftProposals  int
	RiskReverts     int
	ProposalsQueued int
	DriftMetrics    []observability.DriftAlertMetric
}

// Compute analyzes the current vs previous window and queues approval-tier
// proposals. Each sub-analysis degrades independently.
func Compute(ctx context.Context, deps ComputeDeps, input ComputeInput) (ComputeOutput, error) {
	out := ComputeOutput{}
	if deps.Store == nil || deps.Metrics == nil || deps.Adjustments == nil {
		return out, fmt.Errorf("monthly: missing deps")
	}
	if input.TenantID == uuid.Nil {
		return out, fmt.Errorf("monthly: missing tenant_id")
	}
	if input.WindowDays <= 0 {
		input.WindowDays = 28
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	windowStart := now.AddDate(0, 0, -input.WindowDays)
	prevStart := windowStart.AddDate(0, 0, -input.WindowDays)
	out.WindowStart = windowStart
	out.WindowEnd = now

	strategy, err := deps.Store.Load(input.TenantID)
	if err != nil {
		return out, fmt.Errorf("monthly: load strategy: %w", err)
	}

	var locked []types.LockedSetting
	if deps.Prefs != nil {
		if model, err := deps.Prefs.GetByTenant(ctx, nil, input.TenantID); err != nil {
			warn(deps.Log, "monthly: preference model read failed, proceeding without locks", err)
		} else if model != nil {
			locked = locks.Decode(model.LockedSettings)
		}
	}

	current, err := deps.Metrics.ListInWindow(ctx, nil, input.TenantID, windowStart, now)
	if err != nil {
		return out, fmt.Errorf("monthly: current window read: %w", err)
	}
	previous, err := deps.Metrics.ListInWindow(ctx, nil, input.TenantID, prevStart, windowStart)
	if err != nil {
		warn(deps.Log, "monthly: previous window read failed, skipping delta analyses", err)
		previous = nil
	}

	proposals := []adjust.Proposal{}
	if len(previous) > 0 {
		newPillars, dropFormats := audienceSignalProposals(current, previous, strategy, locked)
		out.NewPillars = len(newPillars)
		out.DropFormats = len(dropFormats)
		proposals = append(proposals, newPillars...)
		proposals = append(proposals, dropFormats...)
	}

	driftProposals, driftMetrics := driftAnalysis(current, strategy, locked)
	out.DriftProposals = len(driftProposals)
	out.DriftMetrics = driftMetrics
	proposals = append(proposals, driftProposals...)
	if len(driftMetrics) > 0 {
		observability.ReportStrategyDrift(ctx, deps.Log, driftMetrics, map[string]any{
			"tenant_id":    input.TenantID.String(),
			"window_start": windowStart.Format(time.RFC3339),
			"window_end":   now.Format(time.RFC3339),
		})
	}

	reverts, err := riskBudgetProposals(ctx, deps, input.TenantID, windowStart, current, locked)
	if err != nil {
		warn(deps.Log, "monthly: risk budget analysis failed", err)
	} else {
		out.RiskReverts = len(reverts)
		proposals = append(proposals, reverts...)
	}

	if len(proposals) == 0 {
		return out, nil
	}
	rows := make([]*types.StrategyAdjustment, 0, len(proposals))
	for _, p := range proposals {
		rows = append(rows, &types.StrategyAdjustment{
			ID:             uuid.New(),
			TenantID:       input.TenantID,
			AdjustmentType: p.Type,
			Field:          p.Field,
			OldValue:       jsonValue(p.OldValue),
			NewValue:       jsonValue(p.NewValue),
			Reason:         p.Reason,
			Evidence:       jsonValue(p.Evidence),
			Tier:           types.TierApproval,
			Status:         types.AdjustmentPending,
		})
	}
	if _, err := deps.Adjustments.Create(ctx, nil, rows); err != nil {
		return out, fmt.Errorf("monthly: queue proposals: %w", err)
	}
	out.ProposalsQueued = len(rows)
	return out, nil
}

type dimensionStats struct {
	sum   float64
	count int
}

func (d dimensionStats) mean() float64 {
	if d.count == 0 {
		return 0
	}
	return d.sum / float64(d.count)
}

func groupBy(metrics []*types.EngagementMetric, key func(*types.EngagementMetric) string) map[string]dimensionStats {
	out := map[string]dimensionStats{}
	for _, m := range metrics {
		if m == nil {
			continue
		}
		k := key(m)
		if k == "" {
			continue
		}
		s := out[k]
		s.sum += m.EngagementScore
		s.count++
		out[k] = s
	}
	return out
}

// audienceSignalProposals compares the two windows per pillar and format.
// A pillar surging past the growth threshold that is not yet configured
// becomes a new-pillar proposal; a format collapsing past the decline
// threshold becomes a drop-format proposal on every platform carrying it.
func audienceSignalProposals(current, previous []*types.EngagementMetric, strategy *strategyfile.Strategy, locked []types.LockedSetting) ([]adjust.Proposal, []adjust.Proposal) {
	curPillars := groupBy(current, func(m *types.EngagementMetric) string { return m.PostPillar })
	prevPillars := groupBy(previous, func(m *types.EngagementMetric) string { return m.PostPillar })

	newPillars := []adjust.Proposal{}
	for _, pillar := range sortedKeys(curPillars) {
		cur := curPillars[pillar]
		prev, had := prevPillars[pillar]
		if cur.count < minSamplesPerSide || !had || prev.count < minSamplesPerSide || prev.mean() <= 0 {
			continue
		}
		delta := (cur.mean() - prev.mean()) / prev.mean()
		if delta <= growthDelta {
			continue
		}
		if _, configured := strategy.Pillars[pillar]; configured {
			continue
		}
		field := "pillars." + pillar
		if locks.IsSettingLocked(locked, field) {
			continue
		}
		newPillars = append(newPillars, adjust.Proposal{
			Type:     types.AdjustmentNewPillar,
			Field:    field,
			NewValue: 0.1,
			Reason:   fmt.Sprintf("audience signal for unconfigured pillar %q grew %.0f%% month over month", pillar, delta*100),
			Evidence: []string{fmt.Sprintf("mean score %.1f (%d posts) vs %.1f (%d posts)", cur.mean(), cur.count, prev.mean(), prev.count)},
			Tier:     types.TierApproval,
			Target:   adjust.Target{Pillar: pillar},
		})
	}

	curFormats := groupBy(current, func(m *types.EngagementMetric) string { return m.PostFormat })
	prevFormats := groupBy(previous, func(m *types.EngagementMetric) string { return m.PostFormat })

	dropFormats := []adjust.Proposal{}
	for _, format := range sortedKeys(curFormats) {
		cur := curFormats[format]
		prev, had := prevFormats[format]
		if cur.count < minSamplesPerSide || !had || prev.count < minSamplesPerSide || prev.mean() <= 0 {
			continue
		}
		delta := (cur.mean() - prev.mean()) / prev.mean()
		if delta >= declineDelta {
			continue
		}
		for _, platform := range sortedKeys(toStatsKeys(strategy.Platforms)) {
			cfg := strategy.Platforms[platform]
			if !containsString(cfg.FormatPreference, format) {
				continue
			}
			field := "platforms." + platform + ".formats." + format
			if locks.IsSettingLocked(locked, field) {
				continue
			}
			dropFormats = append(dropFormats, adjust.Proposal{
				Type:     types.AdjustmentDropFormat,
				Field:    field,
				OldValue: format,
				Reason:   fmt.Sprintf("format %q declined %.0f%% month over month", format, -delta*100),
				Evidence: []string{fmt.Sprintf("mean score %.1f (%d posts) vs %.1f (%d posts)", cur.mean(), cur.count, prev.mean(), prev.count)},
				Tier:     types.TierApproval,
				Target:   adjust.Target{Platform: platform, Format: format},
			})
		}
	}
	return newPillars, dropFormats
}

// driftAnalysis compares each configured pillar's weight share against its
// observed share of engagement volume this window.
func driftAnalysis(current []*types.EngagementMetric, strategy *strategyfile.Strategy, locked []types.LockedSetting) ([]adjust.Proposal, []observability.DriftAlertMetric) {
	if len(current) == 0 || len(strategy.Pillars) == 0 {
		return nil, nil
	}
	observed := groupBy(current, func(m *types.EngagementMetric) string { return m.PostPillar })
	totalPosts := 0
	for _, s := range observed {
		totalPosts += s.count
	}
	weightSum := 0.0
	for _, w := range strategy.Pillars {
		weightSum += w
	}
	if totalPosts == 0 || weightSum <= 0 {
		return nil, nil
	}

	proposals := []adjust.Proposal{}
	metrics := []observability.DriftAlertMetric{}
	for _, pillar := range strategy.PillarNames() {
		weight := strategy.Pillars[pillar]
		configuredShare := weight / weightSum
		observedShare := float64(observed[pillar].count) / float64(totalPosts)
		drift := observedShare - configuredShare
		if absFloat(drift) <= driftThreshold {
			continue
		}
		metrics = append(metrics, observability.DriftAlertMetric{
			Name:      "pillar_share_drift." + pillar,
			Value:     drift,
			Threshold: driftThreshold,
			Meta: map[string]any{
				"configured_share": configuredShare,
				"observed_share":   observedShare,
			},
		})
		field := "pillars." + pillar + ".weight"
		if locks.IsSettingLocked(locked, field) {
			continue
		}
		next := clamp01(weight + 0.1*sign(drift))
		if next == weight {
			continue
		}
		proposals = append(proposals, adjust.Proposal{
			Type:     types.AdjustmentPillarWeight,
			Field:    field,
			OldValue: weight,
			NewValue: next,
			Reason:   fmt.Sprintf("pillar %q drifted %.0f points from its configured share", pillar, drift*100),
			Evidence: []string{fmt.Sprintf("configured share %.0f%%, observed %.0f%% over %d posts", configuredShare*100, observedShare*100, totalPosts)},
			Tier:     types.TierApproval,
			Target:   adjust.Target{Pillar: pillar},
		})
	}
	return proposals, metrics
}

// riskBudgetProposals checks engagement before and after each auto-applied
// adjustment this window; a clear decline queues a revert proposal.
func riskBudgetProposals(ctx context.Context, deps ComputeDeps, tenantID uuid.UUID, since time.Time, current []*types.EngagementMetric, locked []types.LockedSetting) ([]adjust.Proposal, error) {
	applied, err := deps.Adjustments.ListAppliedSince(ctx, nil, tenantID, since)
	if err != nil {
		return nil, err
	}
	out := []adjust.Proposal{}
	for _, row := range applied {
		if row == nil || row.AdjustmentType != types.AdjustmentPillarWeight || row.Tier != types.TierAuto {
			continue
		}
		before := dimensionStats{}
		after := dimensionStats{}
		for _, m := range current {
			if m == nil {
				continue
			}
			if m.CollectedAt.Before(row.CreatedAt) {
				before.sum += m.EngagementScore
				before.count++
			} else {
				after.sum += m.EngagementScore
				after.count++
			}
		}
		if before.count < minSamplesPerSide || after.count < minSamplesPerSide || before.mean() <= 0 {
			continue
		}
		decline := (before.mean() - after.mean()) / before.mean()
		if decline <= riskDeclineThreshold {
			continue
		}
		if locks.IsSettingLocked(locked, row.Field) {
			continue
		}
		out = append(out, adjust.Proposal{
			Type:     types.AdjustmentPillarWeight,
			Field:    row.Field,
			OldValue: rawJSON(row.NewValue),
			NewValue: rawJSON(row.OldValue),
			Reason:   fmt.Sprintf("engagement dropped %.0f%% after auto-adjustment of %s; revert proposed", decline*100, row.Field),
			Evidence: []string{fmt.Sprintf("mean %.1f before (%d posts) vs %.1f after (%d posts)", before.mean(), before.count, after.mean(), after.count)},
			Tier:     types.TierApproval,
			Target:   targetForField(row.Field),
		})
	}
	return out, nil
}

func targetForField(field string) adjust.Target {
	segments := []string{}
	start := 0
	for i := 0; i < len(field); i++ {
		if field[i] == '.' {
			segments = append(segments, field[start:i])
			start = i + 1
		}
	}
	segments = append(segments, field[start:])
	if len(segments) >= 2 && segments[0] == "pillars" {
		return adjust.Target{Pillar: segments[1]}
	}
	return adjust.Target{}
}

func jsonValue(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

func rawJSON(raw datatypes.JSON) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func warn(log *logger.Logger, msg string, err error) {
	if log != nil {
		log.Warn(msg, "error", err.Error())
	}
}

func sortedKeys(m map[string]dimensionStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toStatsKeys(platforms map[string]strategyfile.Platform) map[string]dimensionStats {
	out := map[string]dimensionStats{}
	for name := range platforms {
		out[name] = dimensionStats{}
	}
	return out
}

func containsString(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
