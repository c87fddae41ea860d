package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound = errors.New("job_not_found")
	// ErrDuplicateExecution marks an insert that hit the
	// (schedule, period, employee) uniqueness index. Callers treat it
	// as an idempotent skip, not a failure.
	ErrDuplicateExecution = errors.New("duplicate_execution")
)

type ListFilter struct {
	ScheduleID snowflake.ID
	Status     JobStatus
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *Job) error
	FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*Job, error)
	List(ctx context.Context, db *gorm.DB, businessID snowflake.ID, filter ListFilter) ([]*Job, error)
	// ListStuckProcessing returns jobs that have held a reservation
	// longer than the threshold, for the recovery sweep.
	ListStuckProcessing(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]*Job, error)
}
