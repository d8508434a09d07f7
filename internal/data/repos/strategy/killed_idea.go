package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type KilledIdeaRepo interface {
	ListTouchedInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.KilledIdea, error)
}

type killedIdeaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKilledIdeaRepo(db *gorm.DB, baseLog *logger.Logger) KilledIdeaRepo {
	return &killedIdeaRepo{db: db, log: baseLog.With("repo", "KilledIdeaRepo")}
}

func (r *killedIdeaRepo) ListTouchedInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.KilledIdea, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.KilledIdea
	if tenantID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("tenant_id = ? AND last_touched_at >= ? AND last_touched_at < ?", tenantID, from, to).
		Order("last_touched_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
