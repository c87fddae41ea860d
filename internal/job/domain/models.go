package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one disbursement attempt for one recipient in one period.
// The unique index makes job creation idempotent: a second tick for
// the same schedule occurrence hits the index instead of paying twice.
// Processing jobs hold reserved funds; succeeded jobs hold spent funds.
type Job struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	BusinessID snowflake.ID `gorm:"not null;index:idx_jobs_business"`
	ScheduleID snowflake.ID `gorm:"not null;uniqueIndex:uq_jobs_execution"`
	EmployeeID snowflake.ID `gorm:"not null;uniqueIndex:uq_jobs_execution"`

	PeriodStart time.Time `gorm:"not null;uniqueIndex:uq_jobs_execution"`
	PeriodEnd   time.Time `gorm:"not null;uniqueIndex:uq_jobs_execution"`

	AmountCents      int64     `gorm:"not null"`
	Status           JobStatus `gorm:"type:text;not null;default:'pending'"`
	ReservationToken *string
	FailureReason    *string
	ProcessedAt      *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Job) TableName() string { return "jobs" }
