package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/tax/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, table *domain.TaxTable) error {
	return db.WithContext(ctx).Create(table).Error
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB) (*domain.TaxTable, error) {
	var table domain.TaxTable
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		First(&table).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNoActiveTable
		}
		return nil, err
	}
	return &table, nil
}

func (r *repo) FindByVersion(ctx context.Context, db *gorm.DB, version string) (*domain.TaxTable, error) {
	var table domain.TaxTable
	err := db.WithContext(ctx).
		Where("version = ?", version).
		First(&table).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTableNotFound
		}
		return nil, err
	}
	return &table, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.TaxTable, error) {
	var tables []*domain.TaxTable
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Find(&tables).Error
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// SetActive flips the active flag to the given version inside one
// transaction so there is never more or less than one active table.
func (r *repo) SetActive(ctx context.Context, db *gorm.DB, version string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.TaxTable{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}

		res := tx.Model(&domain.TaxTable{}).
			Where("version = ?", version).
			Update("is_active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrTableNotFound
		}
		return nil
	})
}
