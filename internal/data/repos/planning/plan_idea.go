package planning

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type PlanIdeaRepo interface {
	ListOpen(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, limit int) ([]*types.PlanIdea, error)
}

type planIdeaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanIdeaRepo(db *gorm.DB, baseLog *logger.Logger) PlanIdeaRepo {
	return &planIdeaRepo{db: db, log: baseLog.With("repo", "PlanIdeaRepo")}
}

// ListOpen returns ideas not yet consumed by a slot, newest first so fresh
// candidates surface ahead of stale ones at the same score.
func (r *planIdeaRepo) ListOpen(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, limit int) ([]*types.PlanIdea, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.PlanIdea
	if tenantID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("id NOT IN (?)", t.Session(&gorm.Session{NewDB: true}).
			Model(&types.PlanSlot{}).
			Select("idea_id").
			Where("tenant_id = ? AND idea_id IS NOT NULL", tenantID)).
		Order("score DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
