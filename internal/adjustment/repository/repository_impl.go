package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/adjustment/domain"
	"github.com/paygrid/disburse/internal/recurrence"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, a *domain.Adjustment) error {
	return db.WithContext(ctx).Create(a).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*domain.Adjustment, error) {
	var a domain.Adjustment
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessID, id).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAdjustmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *repo) ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]*domain.Adjustment, error) {
	var adjustments []*domain.Adjustment
	err := db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at ASC").
		Find(&adjustments).Error
	if err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (r *repo) ListCandidates(ctx context.Context, db *gorm.DB, businessID snowflake.ID, period recurrence.Period) ([]domain.Adjustment, error) {
	var adjustments []domain.Adjustment
	err := db.WithContext(ctx).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Where("(period_start IS NULL AND period_end IS NULL) OR (period_start <= ? AND period_end >= ?)",
			period.End, period.Start).
		Order("created_at ASC").
		Find(&adjustments).Error
	if err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (r *repo) CountOnceOff(ctx context.Context, db *gorm.DB, businessID snowflake.ID, employeeID, scheduleID snowflake.ID, periodStart, periodEnd time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Adjustment{}).
		Where("business_id = ? AND employee_id = ? AND schedule_id = ? AND period_start = ? AND period_end = ?",
			businessID, employeeID, scheduleID, periodStart, periodEnd).
		Count(&count).Error
	return count, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, a *domain.Adjustment) error {
	return db.WithContext(ctx).Save(a).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) error {
	res := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessID, id).
		Delete(&domain.Adjustment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAdjustmentNotFound
	}
	return nil
}
