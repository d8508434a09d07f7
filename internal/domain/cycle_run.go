package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CycleKind string

const (
	CycleWeekly  CycleKind = "weekly"
	CycleMonthly CycleKind = "monthly"
)

type CycleStatus string

const (
	CycleRunning   CycleStatus = "running"
	CycleSucceeded CycleStatus = "succeeded"
	CycleDegraded  CycleStatus = "degraded"
	CycleFailed    CycleStatus = "failed"
)

// CycleRun is the audit row for one weekly or monthly cycle execution.
// Stage summaries land in the jsonb payload so partial failures stay
// inspectable after the fact.
type CycleRun struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	Kind   CycleKind   `gorm:"type:text;not null" json:"kind"`
	Status CycleStatus `gorm:"type:text;not null;index" json:"status"`

	Stages datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"stages"`
	Error  string         `gorm:"type:text" json:"error,omitempty"`

	StartedAt  time.Time  `gorm:"not null;default:now();index" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CycleRun) TableName() string { return "cycle_runs" }
