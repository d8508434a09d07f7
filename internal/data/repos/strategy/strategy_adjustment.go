package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type StrategyAdjustmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.StrategyAdjustment) ([]*types.StrategyAdjustment, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StrategyAdjustment, error)
	ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, status types.AdjustmentStatus, limit int) ([]*types.StrategyAdjustment, error)
	ListAppliedSince(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, since time.Time) ([]*types.StrategyAdjustment, error)
	SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.AdjustmentStatus) error
}

type strategyAdjustmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStrategyAdjustmentRepo(db *gorm.DB, baseLog *logger.Logger) StrategyAdjustmentRepo {
	return &strategyAdjustmentRepo{db: db, log: baseLog.With("repo", "StrategyAdjustmentRepo")}
}

func (r *strategyAdjustmentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.StrategyAdjustment) ([]*types.StrategyAdjustment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.StrategyAdjustment{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategyAdjustmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StrategyAdjustment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	row := &types.StrategyAdjustment{}
	err := t.WithContext(ctx).Where("id = ?", id).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *strategyAdjustmentRepo) ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, status types.AdjustmentStatus, limit int) ([]*types.StrategyAdjustment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.StrategyAdjustment
	if tenantID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *strategyAdjustmentRepo) ListAppliedSince(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, since time.Time) ([]*types.StrategyAdjustment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.StrategyAdjustment
	if tenantID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND created_at >= ?",
			tenantID, []types.AdjustmentStatus{types.AdjustmentApplied, types.AdjustmentApproved}, since).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *strategyAdjustmentRepo) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.AdjustmentStatus) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return t.WithContext(ctx).
		Model(&types.StrategyAdjustment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"decided_at": now,
			"updated_at": now,
		}).Error
}
