package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type BusinessStatus string

const (
	BusinessStatusActive    BusinessStatus = "active"
	BusinessStatusSuspended BusinessStatus = "suspended"
	BusinessStatusBanned    BusinessStatus = "banned"
)

// Business is the tenant. Every other entity is scoped by business_id.
type Business struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	Name      string         `gorm:"type:text;not null"`
	Slug      string         `gorm:"type:text;not null;uniqueIndex"`
	Status    BusinessStatus `gorm:"type:text;not null;default:'active'"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Business) TableName() string { return "businesses" }

// CanPerformActions gates creation of schedules, adjustments and
// deposits. Suspended and banned tenants keep read access only.
func (b Business) CanPerformActions() bool {
	return b.Status == BusinessStatusActive
}
