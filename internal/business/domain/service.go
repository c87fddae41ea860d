package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrBusinessNotFound  = errors.New("business_not_found")
	ErrBusinessInactive  = errors.New("business_inactive")
	ErrInvalidName       = errors.New("invalid_business_name")
	ErrSlugAlreadyExists = errors.New("business_slug_already_exists")
	ErrInvalidStatus     = errors.New("invalid_business_status")
)

type CreateBusinessRequest struct {
	Name string `json:"name"`
}

type Service interface {
	Create(ctx context.Context, req CreateBusinessRequest) (*Business, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Business, error)
	// RequireActive loads the business and fails with ErrBusinessInactive
	// unless its status allows state-changing operations.
	RequireActive(ctx context.Context, id snowflake.ID) (*Business, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status BusinessStatus) (*Business, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, b *Business) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Business, error)
	Update(ctx context.Context, db *gorm.DB, b *Business) error
}
