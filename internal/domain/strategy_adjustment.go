package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdjustmentType enumerates the strategy fields the adjustment engine knows
// how to change. The dotted Field path on a StrategyAdjustment is derived
// from the type plus its target (pillar name, platform), never parsed back.
type AdjustmentType string

const (
	AdjustmentPillarWeight     AdjustmentType = "pillar_weight"
	AdjustmentPostingTime      AdjustmentType = "posting_time"
	AdjustmentFormatPreference AdjustmentType = "format_preference"
	AdjustmentFrequency        AdjustmentType = "frequency"
	AdjustmentNewPillar        AdjustmentType = "new_pillar"
	AdjustmentDropFormat       AdjustmentType = "drop_format"
)

type AdjustmentTier string

const (
	TierAuto     AdjustmentTier = "auto"
	TierApproval AdjustmentTier = "approval"
)

type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "pending"
	AdjustmentApplied  AdjustmentStatus = "applied"
	AdjustmentApproved AdjustmentStatus = "approved"
	AdjustmentRejected AdjustmentStatus = "rejected"
)

// StrategyAdjustment is one proposed or applied change to the strategy
// document. Auto-tier adjustments are recorded as applied; approval-tier
// adjustments stay pending until a human decision. Applied, approved and
// rejected are terminal.
type StrategyAdjustment struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	AdjustmentType AdjustmentType `gorm:"type:text;not null" json:"adjustment_type"`
	Field          string         `gorm:"type:text;not null" json:"field"`

	OldValue datatypes.JSON `gorm:"type:jsonb" json:"old_value"`
	NewValue datatypes.JSON `gorm:"type:jsonb" json:"new_value"`

	Reason   string         `gorm:"type:text;not null" json:"reason"`
	Evidence datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"evidence"`

	Tier   AdjustmentTier   `gorm:"type:text;not null" json:"tier"`
	Status AdjustmentStatus `gorm:"type:text;not null;index" json:"status"`

	DecidedAt *time.Time `json:"decided_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (StrategyAdjustment) TableName() string { return "strategy_adjustments" }
