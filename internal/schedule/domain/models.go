package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/paygrid/disburse/internal/recurrence"
)

type ScheduleKind string

const (
	// KindGeneric pays the schedule's base amount to every recipient.
	KindGeneric ScheduleKind = "generic"
	// KindPayroll pays each employee their net salary after tax and
	// adjustments.
	KindPayroll ScheduleKind = "payroll"
)

type ScheduleType string

const (
	TypeOneTime   ScheduleType = "one_time"
	TypeRecurring ScheduleType = "recurring"
)

type ScheduleStatus string

const (
	StatusActive    ScheduleStatus = "active"
	StatusPaused    ScheduleStatus = "paused"
	StatusCancelled ScheduleStatus = "cancelled"
)

// Schedule drives the dispatcher: an active schedule whose NextRunAt
// has passed is due. Spec holds the recurrence descriptor in its
// storage form.
type Schedule struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	BusinessID snowflake.ID `gorm:"not null;index:idx_schedules_business"`

	Kind        ScheduleKind `gorm:"type:text;not null"`
	Name        string       `gorm:"type:text;not null"`
	Reference   string       `gorm:"type:text;not null;uniqueIndex"`
	AmountCents *int64
	Currency    string `gorm:"type:text;not null;default:'ZAR'"`

	Spec         string       `gorm:"type:text;not null"`
	ScheduleType ScheduleType `gorm:"type:text;not null"`

	Status    ScheduleStatus `gorm:"type:text;not null;default:'active'"`
	NextRunAt *time.Time     `gorm:"index:idx_schedules_next_run"`
	LastRunAt *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Schedule) TableName() string { return "schedules" }

func (s *Schedule) Descriptor() (recurrence.Descriptor, error) {
	return recurrence.Parse(s.Spec)
}

type ScheduleRecipient struct {
	ScheduleID snowflake.ID `gorm:"primaryKey"`
	EmployeeID snowflake.ID `gorm:"primaryKey"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ScheduleRecipient) TableName() string { return "schedule_recipients" }
