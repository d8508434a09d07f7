package planning

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type CycleRunRepo interface {
	Start(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, kind types.CycleKind) (*types.CycleRun, error)
	Finish(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.CycleStatus, stages datatypes.JSON, errMsg string) error
}

type cycleRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCycleRunRepo(db *gorm.DB, baseLog *logger.Logger) CycleRunRepo {
	return &cycleRunRepo{db: db, log: baseLog.With("repo", "CycleRunRepo")}
}

func (r *cycleRunRepo) Start(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, kind types.CycleKind) (*types.CycleRun, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if tenantID == uuid.Nil {
		return nil, nil
	}
	row := &types.CycleRun{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Kind:      kind,
		Status:    types.CycleRunning,
		Stages:    []byte("{}"),
		StartedAt: time.Now().UTC(),
	}
	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *cycleRunRepo) Finish(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.CycleStatus, stages datatypes.JSON, errMsg string) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": now,
	}
	if len(stages) > 0 {
		updates["stages"] = stages
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	return t.WithContext(ctx).
		Model(&types.CycleRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}
