package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/paygrid/disburse/internal/job/domain"
	"github.com/paygrid/disburse/pkg/db"
	"github.com/paygrid/disburse/pkg/db/option"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert is idempotent on (schedule, employee, period): a conflicting
// row reports ErrDuplicateExecution without poisoning the caller's
// transaction.
func (r *repo) Insert(ctx context.Context, tx *gorm.DB, job *domain.Job) error {
	result := tx.WithContext(ctx).
		Clauses(executionConflictClause()).
		Create(job)
	if result.Error != nil {
		if db.IsDuplicateKeyErr(result.Error) {
			return domain.ErrDuplicateExecution
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrDuplicateExecution
	}
	return nil
}

func executionConflictClause() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{
			{Name: "schedule_id"},
			{Name: "employee_id"},
			{Name: "period_start"},
			{Name: "period_end"},
		},
		DoNothing: true,
	}
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, businessID, id snowflake.ID) (*domain.Job, error) {
	var job domain.Job
	err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessID, id).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *repo) List(ctx context.Context, tx *gorm.DB, businessID snowflake.ID, filter domain.ListFilter) ([]*domain.Job, error) {
	stmt := tx.WithContext(ctx).Where("business_id = ?", businessID)
	if filter.ScheduleID != 0 {
		stmt = stmt.Where("schedule_id = ?", filter.ScheduleID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	for _, opt := range []option.QueryOption{
		option.WithOrder("created_at DESC"),
		option.WithLimit(filter.Limit),
	} {
		stmt = opt.Apply(stmt)
	}

	var jobs []*domain.Job
	if err := stmt.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) ListStuckProcessing(ctx context.Context, tx *gorm.DB, olderThan time.Time, limit int) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := tx.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.JobStatusProcessing, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
