package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, table *TaxTable) error
	FindActive(ctx context.Context, db *gorm.DB) (*TaxTable, error)
	FindByVersion(ctx context.Context, db *gorm.DB, version string) (*TaxTable, error)
	List(ctx context.Context, db *gorm.DB) ([]*TaxTable, error)
	SetActive(ctx context.Context, db *gorm.DB, version string) error
}
