package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/employee/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *domain.Employee) error {
	return db.WithContext(ctx).Create(e).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*domain.Employee, error) {
	var e domain.Employee
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessID, id).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEmployeeNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, businessID snowflake.ID, ids []snowflake.ID) ([]*domain.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var employees []*domain.Employee
	err := db.WithContext(ctx).
		Where("business_id = ? AND id IN ?", businessID, ids).
		Find(&employees).Error
	if err != nil {
		return nil, err
	}
	return employees, nil
}

func (r *repo) ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]*domain.Employee, error) {
	var employees []*domain.Employee
	err := db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at ASC").
		Find(&employees).Error
	if err != nil {
		return nil, err
	}
	return employees, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, e *domain.Employee) error {
	return db.WithContext(ctx).Save(e).Error
}
