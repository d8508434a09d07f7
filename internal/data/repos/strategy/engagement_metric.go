package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type EngagementMetricRepo interface {
	ListInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.EngagementMetric, error)
	CountByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (int64, error)
	OldestCollectedAt(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*time.Time, error)
}

type engagementMetricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEngagementMetricRepo(db *gorm.DB, baseLog *logger.Logger) EngagementMetricRepo {
	return &engagementMetricRepo{db: db, log: baseLog.With("repo", "EngagementMetricRepo")}
}

func (r *engagementMetricRepo) ListInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.EngagementMetric, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.EngagementMetric
	if tenantID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("tenant_id = ? AND collected_at >= ? AND collected_at < ?", tenantID, from, to).
		Order("collected_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *engagementMetricRepo) CountByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if tenantID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := t.WithContext(ctx).
		Model(&types.EngagementMetric{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *engagementMetricRepo) OldestCollectedAt(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*time.Time, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if tenantID == uuid.Nil {
		return nil, nil
	}
	row := &types.EngagementMetric{}
	err := t.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("collected_at ASC").
		Limit(1).
		Find(row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	ts := row.CollectedAt
	return &ts, nil
}
