package monthly

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/locks"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

var analysisNow = time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

type windowedMetrics struct {
	current  []*types.EngagementMetric
	previous []*types.EngagementMetric
}

func (f *windowedMetrics) ListInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.EngagementMetric, error) {
	if to.Equal(analysisNow) {
		return f.current, nil
	}
	return f.previous, nil
}

type recordingAdjustments struct {
	created []*types.StrategyAdjustment
	applied []*types.StrategyAdjustment
}

func (f *recordingAdjustments) Create(ctx context.Context, tx *gorm.DB, rows []*types.StrategyAdjustment) ([]*types.StrategyAdjustment, error) {
	f.created = append(f.created, rows...)
	return rows, nil
}

func (f *recordingAdjustments) ListAppliedSince(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, since time.Time) ([]*types.StrategyAdjustment, error) {
	return f.applied, nil
}

type staticPrefs struct {
	model *types.PreferenceModel
}

func (f *staticPrefs) GetByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*types.PreferenceModel, error) {
	return f.model, nil
}

func metricsFor(pillar, format string, score float64, collected time.Time, n int) []*types.EngagementMetric {
	out := []*types.EngagementMetric{}
	for i := 0; i < n; i++ {
		out = append(out, &types.EngagementMetric{
			PostPillar:      pillar,
			PostFormat:      format,
			EngagementScore: score,
			CollectedAt:     collected,
			PublishedAt:     collected,
		})
	}
	return out
}

func monthlyStrategy(t *testing.T, tenantID uuid.UUID) (*strategyfile.Store, *strategyfile.Strategy) {
	t.Helper()
	store, err := strategyfile.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	strategy := &strategyfile.Strategy{
		Pillars: map[string]float64{"ai": 0.6, "devops": 0.4},
		Platforms: map[string]strategyfile.Platform{
			"twitter": {FrequencyPerWeek: 5, FormatPreference: []string{"thread", "poll"}},
		},
		PrimaryLanguage: "en",
	}
	if err := store.Save(tenantID, strategy); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store, strategy
}

func findType(rows []*types.StrategyAdjustment, kind types.AdjustmentType) []*types.StrategyAdjustment {
	out := []*types.StrategyAdjustment{}
	for _, r := range rows {
		if r.AdjustmentType == kind {
			out = append(out, r)
		}
	}
	return out
}

func TestNewPillarProposalOnSurgingUnconfiguredPillar(t *testing.T) {
	tenantID := uuid.New()
	store, _ := monthlyStrategy(t, tenantID)

	inWindow := analysisNow.AddDate(0, 0, -7)
	prevWindow := analysisNow.AddDate(0, 0, -35)
	metrics := &windowedMetrics{
		current:  metricsFor("opensource", "thread", 90, inWindow, 4),
		previous: metricsFor("opensource", "thread", 40, prevWindow, 4),
	}
	repo := &recordingAdjustments{}

	out, err := Compute(context.Background(), ComputeDeps{
		Store:       store,
		Metrics:     metrics,
		Prefs:       &staticPrefs{},
		Adjustments: repo,
	}, ComputeInput{TenantID: tenantID, Now: analysisNow})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if out.NewPillars != 1 {
		t.Fatalf("125%% growth on an unconfigured pillar must propose, got %d", out.NewPillars)
	}
	rows := findType(repo.created, types.AdjustmentNewPillar)
	if len(rows) != 1 {
		t.Fatalf("expected 1 new_pillar row, got %d", len(rows))
	}
	if rows[0].Tier != types.TierApproval || rows[0].Status != types.AdjustmentPending {
		t.Fatalf("monthly proposals are approval tier and pending, got %s/%s", rows[0].Tier, rows[0].Status)
	}
	if rows[0].Field != "pillars.opensource" {
		t.Fatalf("unexpected field %q", rows[0].Field)
	}
}

func TestConfiguredPillarNeverProposedAsNew(t *testing.T) {
	tenantID := uuid.New()
	store, _ := monthlyStrategy(t, tenantID)

	inWindow := analysisNow.AddDate(0, 0, -7)
	prevWindow := analysisNow.AddDate(0, 0, -35)
	metrics := &windowedMetrics{
		current:  metricsFor("ai", "thread", 90, inWindow, 4),
		previous: metricsFor("ai", "thread", 40, prevWindow, 4),
	}
	repo := &recordingAdjustments{}

	out, err := Compute(context.Background(), ComputeDeps{
		Store: store, Metrics: metrics, Prefs: &staticPrefs{}, Adjustments: repo,
	}, ComputeInput{TenantID: tenantID, Now: analysisNow})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if out.NewPillars != 0 {
		t.Fatalf("configured pillar must not produce new_pillar, got %d", out.NewPillars)
	}
}

func TestDropFormatProposalOnCollapse(t *testing.T) {
	tenantID := uuid.New()
	store, _ := monthlyStrategy(t, tenantID)

	inWindow := analysisNow.AddDate(0, 0, -7)
	prevWindow := analysisNow.AddDate(0, 0, -35)
	metrics := &windowedMetrics{
		current:  metricsFor("ai", "poll", 30, inWindow, 4),
		previous: metricsFor("ai", "poll", 80, prevWindow, 4),
	}
	repo := &recordingAdjustments{}

	out, err := Compute(context.Background(), ComputeDeps{
		Store: store, Metrics: metrics, Prefs: &staticPrefs{}, Adjustments: repo,
	}, ComputeInput{TenantID: tenantID, Now: analysisNow})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if out.DropFormats != 1 {
		t.Fatalf("62%% decline must propose dropping the format, got %d", out.DropFormats)
	}
	rows := findType(repo.created, types.AdjustmentDropFormat)
	if len(rows) != 1 {
		t.Fatalf("expected 1 drop_format row, got %d", len(rows))
	}
	if rows[0].Field != "platforms.twitter.formats.poll" {
		t.Fatalf("unexpected field %q", rows[0].Field)
	}
	if rows[0].Tier != types.TierApproval {
		t.Fatalf("drop_format must never auto-apply, got %s", rows[0].Tier)
	}
}

func TestLockedFieldSuppressesMonthlyProposal(t *testing.T) {
	tenantID := uuid.New()
	store, _ := monthlyStrategy(t, tenantID)

	locked := locks.Encode([]types.LockedSetting{{Field: "pillars.opensource"}})
	model := &types.PreferenceModel{TenantID: tenantID, LockedSettings: locked}

	inWindow := analysisNow.AddDate(0, 0, -7)
	prevWindow := analysisNow.AddDate(0, 0, -35)
	metrics := &windowedMetrics{
		current:  metricsFor("opensource", "thread", 90, inWindow, 4),
		previous: metricsFor("opensource", "thread", 40, prevWindow, 4),
	}
	repo := &recordingAdjustments{}

	out, err := Compute(context.Background(), ComputeDeps{
		Store: store, Metrics: metrics, Prefs: &staticPrefs{model: model}, Adjustments: repo,
	}, ComputeInput{TenantID: tenantID, Now: analysisNow})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if out.NewPillars != 0 {
		t.Fatalf("locked field must suppress the proposal, got %d", out.NewPillars)
	}
}

func TestRiskRevertOnPostAdjustmentDecline(t *testing.T) {
	tenantID := uuid.New()
	store, _ := monthlyStrategy(t, tenantID)

	adjustedAt := analysisNow.AddDate(0, 0, -14)
	before := metricsFor("ai", "thread", 90, adjustedAt.AddDate(0, 0, -7), 4)
	after := metricsFor("ai", "thread", 40, adjustedAt.AddDate(0, 0, 7), 4)

	applied := []*types.StrategyAdjustment{{
		ID:             uuid.New(),
		TenantID:       tenantID,
		AdjustmentType: types.AdjustmentPillarWeight,
		Field:          "pillars.ai.weight",
		Tier:           types.TierAuto,
		Status:         types.AdjustmentApplied,
		CreatedAt:      adjustedAt,
	}}

	metrics := &windowedMetrics{current: append(before, after...)}
	repo := &recordingAdjustments{applied: applied}

	out, err := Compute(context.Background(), ComputeDeps{
		Store: store, Metrics: metrics, Prefs: &staticPrefs{}, Adjustments: repo,
	}, ComputeInput{TenantID: tenantID, Now: analysisNow})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if out.RiskReverts != 1 {
		t.Fatalf("56%% decline after an auto change must propose a revert, got %d", out.RiskReverts)
	}
	rows := findType(repo.created, types.AdjustmentPillarWeight)
	found := false
	for _, r := range rows {
		if r.Field == "pillars.ai.weight" && r.Tier == types.TierApproval {
			found = true
		}
	}
	if !found {
		t.Fatalf("revert must be recorded as approval tier on the same field, got %v", rows)
	}
}
