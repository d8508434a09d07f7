package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EngagementMetric is one collected engagement observation for a published
// post. Written by the platform collectors (external to this core), read by
// the signal aggregation and monthly analysis windows.
type EngagementMetric struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	EngagementScore float64 `gorm:"not null" json:"engagement_score"`
	PostFormat      string  `gorm:"type:text;not null" json:"post_format"`
	PostPillar      string  `gorm:"type:text;not null" json:"post_pillar"`
	PostTopic       string  `gorm:"type:text;not null;index" json:"post_topic"`
	Platform        string  `gorm:"type:text;not null" json:"platform"`
	Language        string  `gorm:"type:text" json:"language"`

	CollectedAt time.Time `gorm:"not null;index" json:"collected_at"`
	PublishedAt time.Time `gorm:"not null" json:"published_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (EngagementMetric) TableName() string { return "engagement_metrics" }

// EditEvent records how heavily the user edited a generated draft before
// publishing, plus the classified edit patterns.
type EditEvent struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	EditRatio    float64        `gorm:"not null" json:"edit_ratio"`
	EditPatterns datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"edit_patterns"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (EditEvent) TableName() string { return "edit_events" }

// KilledIdea is a candidate the user explicitly discarded, with the stated
// reason. Folded into the preference model as negative signal.
type KilledIdea struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	Pillar     string `gorm:"type:text;not null" json:"pillar"`
	KillReason string `gorm:"type:text" json:"kill_reason"`

	LastTouchedAt time.Time `gorm:"not null;index" json:"last_touched_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (KilledIdea) TableName() string { return "killed_ideas" }
