package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
)

func SeedMetric(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, topic string, score float64, collectedAt time.Time) *types.EngagementMetric {
	tb.Helper()
	m := &types.EngagementMetric{
		ID:              uuid.New(),
		TenantID:        tenantID,
		EngagementScore: score,
		PostFormat:      "thread",
		PostPillar:      "ai",
		PostTopic:       topic,
		Platform:        "twitter",
		Language:        "en",
		CollectedAt:     collectedAt,
		PublishedAt:     collectedAt,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed metric: %v", err)
	}
	return m
}

func SeedAdjustment(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, status types.AdjustmentStatus) *types.StrategyAdjustment {
	tb.Helper()
	a := &types.StrategyAdjustment{
		ID:             uuid.New(),
		TenantID:       tenantID,
		AdjustmentType: types.AdjustmentPillarWeight,
		Field:          "pillars.ai.weight",
		Reason:         "seed",
		Tier:           types.TierAuto,
		Status:         status,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed adjustment: %v", err)
	}
	return a
}

func SeedSlot(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, day time.Time, status types.SlotStatus) *types.PlanSlot {
	tb.Helper()
	s := &types.PlanSlot{
		ID:       uuid.New(),
		TenantID: tenantID,
		Day:      day,
		Platform: "twitter",
		Topic:    "topic",
		Format:   "thread",
		Pillar:   "ai",
		Status:   status,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed slot: %v", err)
	}
	return s
}
