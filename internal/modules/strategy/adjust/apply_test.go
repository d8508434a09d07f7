package adjust

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

type fakeAdjustmentStore struct {
	rows map[uuid.UUID]*types.StrategyAdjustment
}

func newFakeAdjustmentStore() *fakeAdjustmentStore {
	return &fakeAdjustmentStore{rows: map[uuid.UUID]*types.StrategyAdjustment{}}
}

func (f *fakeAdjustmentStore) Create(ctx context.Context, tx *gorm.DB, rows []*types.StrategyAdjustment) ([]*types.StrategyAdjustment, error) {
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		f.rows[row.ID] = row
	}
	return rows, nil
}

func (f *fakeAdjustmentStore) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StrategyAdjustment, error) {
	return f.rows[id], nil
}

func (f *fakeAdjustmentStore) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.AdjustmentStatus) error {
	if row, ok := f.rows[id]; ok {
		row.Status = status
	}
	return nil
}

func seededStore(t *testing.T, tenantID uuid.UUID) *strategyfile.Store {
	t.Helper()
	store, err := strategyfile.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(tenantID, baseStrategy()); err != nil {
		t.Fatalf("seed strategy: %v", err)
	}
	return store
}

func TestApplyAutoAdjustmentsPartitionsAndWrites(t *testing.T) {
	tenantID := uuid.New()
	store := seededStore(t, tenantID)
	repo := newFakeAdjustmentStore()
	deps := ApplyDeps{Store: store, Adjustments: repo}

	proposals := []Proposal{
		{
			Type: types.AdjustmentPillarWeight, Field: "pillars.ai.weight",
			OldValue: 0.5, NewValue: 0.55, Tier: types.TierAuto,
			Target: Target{Pillar: "ai"},
		},
		{
			Type: types.AdjustmentNewPillar, Field: "pillars.opensource",
			NewValue: 0.1, Tier: types.TierApproval,
			Target: Target{Pillar: "opensource"},
		},
	}

	result, err := ApplyAutoAdjustments(context.Background(), deps, tenantID, proposals)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Applied) != 1 || len(result.Queued) != 1 {
		t.Fatalf("expected 1 applied and 1 queued, got %d/%d", len(result.Applied), len(result.Queued))
	}
	if result.Applied[0].Status != types.AdjustmentApplied {
		t.Fatalf("auto row must persist as applied, got %s", result.Applied[0].Status)
	}
	if result.Queued[0].Status != types.AdjustmentPending {
		t.Fatalf("approval row must persist as pending, got %s", result.Queued[0].Status)
	}

	reloaded, err := store.Load(tenantID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Pillars["ai"] != 0.55 {
		t.Fatalf("auto change must land on disk, got %v", reloaded.Pillars["ai"])
	}
	if _, exists := reloaded.Pillars["opensource"]; exists {
		t.Fatalf("approval change must not land before approval")
	}
}

func TestApplyDropsInvalidAutoProposal(t *testing.T) {
	tenantID := uuid.New()
	store := seededStore(t, tenantID)
	repo := newFakeAdjustmentStore()
	deps := ApplyDeps{Store: store, Adjustments: repo}

	proposals := []Proposal{
		{
			Type: types.AdjustmentPillarWeight, Field: "pillars.ghost.weight",
			NewValue: 0.5, Tier: types.TierAuto, Target: Target{Pillar: "ghost"},
		},
		{
			Type: types.AdjustmentFrequency, Field: "platforms.twitter.frequency",
			OldValue: 5, NewValue: 6, Tier: types.TierAuto, Target: Target{Platform: "twitter"},
		},
	}

	result, err := ApplyAutoAdjustments(context.Background(), deps, tenantID, proposals)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Applied) != 1 {
		t.Fatalf("invalid proposal must be dropped, valid one applied; got %d applied", len(result.Applied))
	}
	if result.Applied[0].AdjustmentType != types.AdjustmentFrequency {
		t.Fatalf("wrong proposal survived: %s", result.Applied[0].AdjustmentType)
	}
	reloaded, _ := store.Load(tenantID)
	if reloaded.Platforms["twitter"].FrequencyPerWeek != 6 {
		t.Fatalf("sibling proposal must still apply, got %d", reloaded.Platforms["twitter"].FrequencyPerWeek)
	}
}

func TestApproveAppliesPendingAdjustment(t *testing.T) {
	tenantID := uuid.New()
	store := seededStore(t, tenantID)
	repo := newFakeAdjustmentStore()
	deps := ApplyDeps{Store: store, Adjustments: repo}

	proposals := []Proposal{{
		Type: types.AdjustmentNewPillar, Field: "pillars.opensource",
		NewValue: 0.1, Tier: types.TierApproval, Target: Target{Pillar: "opensource"},
	}}
	result, err := ApplyAutoAdjustments(context.Background(), deps, tenantID, proposals)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	id := result.Queued[0].ID

	if err := Approve(context.Background(), deps, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	reloaded, _ := store.Load(tenantID)
	if reloaded.Pillars["opensource"] != 0.1 {
		t.Fatalf("approved pillar must exist with weight 0.1, got %v", reloaded.Pillars["opensource"])
	}
	if repo.rows[id].Status != types.AdjustmentApproved {
		t.Fatalf("expected approved status, got %s", repo.rows[id].Status)
	}

	// Approved records are terminal.
	if err := Approve(context.Background(), deps, id); err == nil {
		t.Fatalf("re-approving a terminal record must fail")
	}
}

func TestRejectIsTerminal(t *testing.T) {
	tenantID := uuid.New()
	store := seededStore(t, tenantID)
	repo := newFakeAdjustmentStore()
	deps := ApplyDeps{Store: store, Adjustments: repo}

	result, err := ApplyAutoAdjustments(context.Background(), deps, tenantID, []Proposal{{
		Type: types.AdjustmentDropFormat, Field: "platforms.twitter.formats.poll",
		OldValue: "poll", Tier: types.TierApproval, Target: Target{Platform: "twitter", Format: "poll"},
	}})
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	id := result.Queued[0].ID

	if err := Reject(context.Background(), deps, id); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if repo.rows[id].Status != types.AdjustmentRejected {
		t.Fatalf("expected rejected, got %s", repo.rows[id].Status)
	}
	reloaded, _ := store.Load(tenantID)
	if len(reloaded.Platforms["twitter"].FormatPreference) != 3 {
		t.Fatalf("rejected adjustment must leave the strategy untouched")
	}
	if err := Reject(context.Background(), deps, id); err == nil {
		t.Fatalf("re-rejecting a terminal record must fail")
	}
	if err := Approve(context.Background(), deps, id); err == nil {
		t.Fatalf("approving a rejected record must fail")
	}
}
