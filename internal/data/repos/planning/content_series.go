package planning

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type ContentSeriesRepo interface {
	ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]*types.ContentSeries, error)
}

type contentSeriesRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentSeriesRepo(db *gorm.DB, baseLog *logger.Logger) ContentSeriesRepo {
	return &contentSeriesRepo{db: db, log: baseLog.With("repo", "ContentSeriesRepo")}
}

func (r *contentSeriesRepo) ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]*types.ContentSeries, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.ContentSeries
	if tenantID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
