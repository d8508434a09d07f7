package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type PlanSlotRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.PlanSlot) ([]*types.PlanSlot, error)
	ListInRange(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.PlanSlot, error)
	Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, next types.SlotStatus) error
}

type planSlotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanSlotRepo(db *gorm.DB, baseLog *logger.Logger) PlanSlotRepo {
	return &planSlotRepo{db: db, log: baseLog.With("repo", "PlanSlotRepo")}
}

func (r *planSlotRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.PlanSlot) ([]*types.PlanSlot, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.PlanSlot{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.Status == "" {
			row.Status = types.SlotOutlined
		}
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *planSlotRepo) ListInRange(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.PlanSlot, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.PlanSlot
	if tenantID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("tenant_id = ? AND day >= ? AND day < ?", tenantID, from, to).
		Order("day ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves a slot along its status lifecycle, rejecting moves out of
// terminal states or skips in the ordering.
func (r *planSlotRepo) Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, next types.SlotStatus) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	row := &types.PlanSlot{}
	if err := t.WithContext(ctx).Where("id = ?", id).First(row).Error; err != nil {
		return err
	}
	if !row.Status.CanTransitionTo(next) {
		return fmt.Errorf("plan slot %s: illegal transition %s -> %s", id, row.Status, next)
	}
	return t.WithContext(ctx).
		Model(&types.PlanSlot{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     next,
			"updated_at": time.Now().UTC(),
		}).Error
}
