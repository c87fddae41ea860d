package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type EmploymentType string

const (
	EmploymentTypePermanent EmploymentType = "permanent"
	EmploymentTypeContract  EmploymentType = "contract"
	EmploymentTypeTemporary EmploymentType = "temporary"
)

type EmployeeStatus string

const (
	EmployeeStatusActive     EmployeeStatus = "active"
	EmployeeStatusTerminated EmployeeStatus = "terminated"
)

// Employee is a disbursement recipient. GrossSalaryCents is the
// monthly gross used by tax and percentage adjustments.
type Employee struct {
	ID               snowflake.ID   `gorm:"primaryKey"`
	BusinessID       snowflake.ID   `gorm:"not null;index:idx_employees_business"`
	FirstName        string         `gorm:"type:text;not null"`
	LastName         string         `gorm:"type:text;not null"`
	Email            string         `gorm:"type:text;not null"`
	GrossSalaryCents int64          `gorm:"not null"`
	EmploymentType   EmploymentType `gorm:"type:text;not null;default:'permanent'"`
	WeeklyHours      float64        `gorm:"not null;default:40"`
	BankAccount      string         `gorm:"type:text;not null"`
	BankCode         string         `gorm:"type:text;not null"`
	Status           EmployeeStatus `gorm:"type:text;not null;default:'active'"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Employee) TableName() string { return "employees" }

func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}
