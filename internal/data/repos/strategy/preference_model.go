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

type PreferenceModelRepo interface {
	GetByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*types.PreferenceModel, error)
	EnsureForTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*types.PreferenceModel, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, updates map[string]interface{}) error
}

type preferenceModelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferenceModelRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceModelRepo {
	return &preferenceModelRepo{db: db, log: baseLog.With("repo", "PreferenceModelRepo")}
}

func (r *preferenceModelRepo) GetByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*types.PreferenceModel, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if tenantID == uuid.Nil {
		return nil, nil
	}
	row := &types.PreferenceModel{}
	err := t.WithContext(ctx).Where("tenant_id = ?", tenantID).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// EnsureForTenant returns the tenant's preference model, creating it with
// empty defaults when it does not exist yet.
func (r *preferenceModelRepo) EnsureForTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*types.PreferenceModel, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if tenantID == uuid.Nil {
		return nil, nil
	}
	row, err := r.GetByTenant(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	row = &types.PreferenceModel{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		TopFormats:         []byte("[]"),
		TopPillars:         []byte("[]"),
		BestPostingTimes:   []byte("[]"),
		HookPatterns:       []byte("[]"),
		CommonEditPatterns: []byte("[]"),
		FatiguedTopics:     []byte("[]"),
		LockedSettings:     []byte("[]"),
		KilledIdeaPatterns: []byte("{}"),
	}
	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *preferenceModelRepo) UpdateFields(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, updates map[string]interface{}) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if tenantID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(ctx).
		Model(&types.PreferenceModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(updates).Error
}
