package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/schedule/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *domain.Schedule, recipients []snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(s).Error; err != nil {
			return err
		}
		return insertRecipients(tx, s.ID, recipients)
	})
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*domain.Schedule, error) {
	var s domain.Schedule
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessID, id).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repo) ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]*domain.Schedule, error) {
	var schedules []*domain.Schedule
	err := db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *repo) ListRecipients(ctx context.Context, db *gorm.DB, scheduleID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.ScheduleRecipient{}).
		Where("schedule_id = ?", scheduleID).
		Order("employee_id ASC").
		Pluck("employee_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, s *domain.Schedule) error {
	return db.WithContext(ctx).Save(s).Error
}

func (r *repo) ReplaceRecipients(ctx context.Context, db *gorm.DB, scheduleID snowflake.ID, recipients []snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", scheduleID).
			Delete(&domain.ScheduleRecipient{}).Error; err != nil {
			return err
		}
		return insertRecipients(tx, scheduleID, recipients)
	})
}

func insertRecipients(tx *gorm.DB, scheduleID snowflake.ID, recipients []snowflake.ID) error {
	if len(recipients) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.ScheduleRecipient, 0, len(recipients))
	for _, employeeID := range recipients {
		rows = append(rows, domain.ScheduleRecipient{
			ScheduleID: scheduleID,
			EmployeeID: employeeID,
			CreatedAt:  now,
		})
	}
	return tx.Create(&rows).Error
}
