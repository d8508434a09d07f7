package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PreferenceModel is the per-tenant rolling preference snapshot. It is
// recomputed by the weekly signal aggregation pass and read by the
// adjustment engine and the slot allocator. Ranked dimensions only carry
// entries once a bucket reaches the minimum sample count.
type PreferenceModel struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"tenant_id"`

	TopFormats         datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"top_formats"`
	TopPillars         datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"top_pillars"`
	BestPostingTimes   datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"best_posting_times"`
	HookPatterns       datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"hook_patterns"`
	CommonEditPatterns datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"common_edit_patterns"`
	FatiguedTopics     datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"fatigued_topics"`
	LockedSettings     datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"locked_settings"`
	KilledIdeaPatterns datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"killed_idea_patterns"`

	AvgEditRatio float64 `gorm:"not null;default:0" json:"avg_edit_ratio"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PreferenceModel) TableName() string { return "preference_models" }

// FormatScore is one ranked entry in the top_formats payload.
type FormatScore struct {
	Format   string  `json:"format"`
	AvgScore float64 `json:"avg_score"`
	Samples  int     `json:"samples"`
}

type PillarScore struct {
	Pillar   string  `json:"pillar"`
	AvgScore float64 `json:"avg_score"`
	Samples  int     `json:"samples"`
}

// PostingTimeScore buckets engagement by hour and weekday.
type PostingTimeScore struct {
	Hour      int     `json:"hour"`
	DayOfWeek int     `json:"day_of_week"`
	AvgScore  float64 `json:"avg_score"`
	Samples   int     `json:"samples"`
}

type EditPatternCount struct {
	Type      string `json:"type"`
	Frequency int    `json:"frequency"`
}

// FatiguedTopic suppresses a topic until its cooldown passes. An entry whose
// cooldown has expired is inert and pruned on the next merge; presence alone
// does not mean fatigued.
type FatiguedTopic struct {
	Topic         string    `json:"topic"`
	CooldownUntil time.Time `json:"cooldown_until"`
	LastScores    []float64 `json:"last_scores"`
}

// LockedSetting pins a strategy field against automated adjustment. Locks
// never expire; only an explicit unlock removes them.
type LockedSetting struct {
	Field    string      `json:"field"`
	Value    interface{} `json:"value"`
	LockedAt time.Time   `json:"locked_at"`
}

type KilledIdeaPatterns struct {
	RejectedPillars map[string]int `json:"rejected_pillars"`
	CommonReasons   []ReasonCount  `json:"common_reasons"`
	RecentKills     int            `json:"recent_kills"`
}

type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}
