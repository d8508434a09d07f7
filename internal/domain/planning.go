package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentSeries is a recurring commitment (e.g. a weekly episode). Its next
// due date derives from the last published episode plus the cadence, never
// from the creation date.
type ContentSeries struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	Name        string `gorm:"type:text;not null" json:"name"`
	Topic       string `gorm:"type:text;not null" json:"topic"`
	Pillar      string `gorm:"type:text;not null" json:"pillar"`
	Format      string `gorm:"type:text;not null" json:"format"`
	Platform    string `gorm:"type:text;not null" json:"platform"`
	Language    string `gorm:"type:text" json:"language"`
	CadenceDays int    `gorm:"not null;default:7" json:"cadence_days"`

	LastPublishedAt *time.Time `json:"last_published_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ContentSeries) TableName() string { return "content_series" }

// NextDue computes the series' next due date. A series that has never
// published is due immediately.
func (s *ContentSeries) NextDue(now time.Time) time.Time {
	if s.LastPublishedAt == nil || s.LastPublishedAt.IsZero() {
		return now
	}
	cadence := s.CadenceDays
	if cadence <= 0 {
		cadence = 7
	}
	return s.LastPublishedAt.AddDate(0, 0, cadence)
}

// PlanIdea is an unscheduled candidate topic.
type PlanIdea struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	Topic  string  `gorm:"type:text;not null" json:"topic"`
	Pillar string  `gorm:"type:text;not null" json:"pillar"`
	Angle  string  `gorm:"type:text;not null" json:"angle"`
	Format string  `gorm:"type:text;not null" json:"format"`
	Source string  `gorm:"type:text" json:"source"`
	Score  float64 `gorm:"not null;default:0" json:"score"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PlanIdea) TableName() string { return "plan_ideas" }

type SlotStatus string

const (
	SlotOutlined  SlotStatus = "outlined"
	SlotDrafted   SlotStatus = "drafted"
	SlotApproved  SlotStatus = "approved"
	SlotScheduled SlotStatus = "scheduled"
	SlotPublished SlotStatus = "published"
	SlotSkipped   SlotStatus = "skipped"
)

// slotTransitions holds the legal forward moves. Published and skipped are
// terminal; skipped is reachable from any non-terminal state.
var slotTransitions = map[SlotStatus][]SlotStatus{
	SlotOutlined:  {SlotDrafted, SlotSkipped},
	SlotDrafted:   {SlotApproved, SlotSkipped},
	SlotApproved:  {SlotScheduled, SlotSkipped},
	SlotScheduled: {SlotPublished, SlotSkipped},
}

func (s SlotStatus) CanTransitionTo(next SlotStatus) bool {
	for _, allowed := range slotTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PlanSlot is one (day, platform) assignment in the weekly plan.
type PlanSlot struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	Day      time.Time `gorm:"not null;index" json:"day"`
	Platform string    `gorm:"type:text;not null" json:"platform"`
	Topic    string    `gorm:"type:text;not null" json:"topic"`
	Format   string    `gorm:"type:text;not null" json:"format"`
	Pillar   string    `gorm:"type:text;not null" json:"pillar"`
	Angle    string    `gorm:"type:text" json:"angle"`
	Language string    `gorm:"type:text" json:"language"`

	SeriesID *uuid.UUID `gorm:"type:uuid;index" json:"series_id,omitempty"`
	IdeaID   *uuid.UUID `gorm:"type:uuid;index" json:"idea_id,omitempty"`

	Status SlotStatus `gorm:"type:text;not null;default:'outlined'" json:"status"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PlanSlot) TableName() string { return "plan_slots" }
