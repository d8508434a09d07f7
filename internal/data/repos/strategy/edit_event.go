package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type EditEventRepo interface {
	ListInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.EditEvent, error)
}

type editEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEditEventRepo(db *gorm.DB, baseLog *logger.Logger) EditEventRepo {
	return &editEventRepo{db: db, log: baseLog.With("repo", "EditEventRepo")}
}

func (r *editEventRepo) ListInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.EditEvent, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.EditEvent
	if tenantID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, from, to).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
