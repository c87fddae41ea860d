package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrEmployeeNotFound   = errors.New("employee_not_found")
	ErrInvalidName        = errors.New("invalid_employee_name")
	ErrInvalidEmail       = errors.New("invalid_employee_email")
	ErrInvalidGrossSalary = errors.New("invalid_gross_salary")
	ErrInvalidBankDetails = errors.New("invalid_bank_details")
	ErrEmployeeTerminated = errors.New("employee_terminated")
)

type CreateEmployeeRequest struct {
	FirstName        string         `json:"first_name"`
	LastName         string         `json:"last_name"`
	Email            string         `json:"email"`
	GrossSalaryCents int64          `json:"gross_salary_cents"`
	EmploymentType   EmploymentType `json:"employment_type"`
	WeeklyHours      float64        `json:"weekly_hours"`
	BankAccount      string         `json:"bank_account"`
	BankCode         string         `json:"bank_code"`
}

type UpdateEmployeeRequest struct {
	GrossSalaryCents *int64   `json:"gross_salary_cents"`
	WeeklyHours      *float64 `json:"weekly_hours"`
	BankAccount      *string  `json:"bank_account"`
	BankCode         *string  `json:"bank_code"`
}

type Service interface {
	Create(ctx context.Context, req CreateEmployeeRequest) (*Employee, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Employee, error)
	List(ctx context.Context) ([]*Employee, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateEmployeeRequest) (*Employee, error)
	Terminate(ctx context.Context, id snowflake.ID) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, e *Employee) error
	FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*Employee, error)
	FindByIDs(ctx context.Context, db *gorm.DB, businessID snowflake.ID, ids []snowflake.ID) ([]*Employee, error)
	ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]*Employee, error)
	Update(ctx context.Context, db *gorm.DB, e *Employee) error
}
