package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/recurrence"
)

type CreateAdjustmentRequest struct {
	EmployeeID  *snowflake.ID `json:"employee_id"`
	ScheduleID  *snowflake.ID `json:"schedule_id"`
	Name        string        `json:"name"`
	ValueType   ValueType     `json:"value_type"`
	Amount      int64         `json:"amount"`
	Direction   Direction     `json:"direction"`
	PeriodStart *time.Time    `json:"period_start"`
	PeriodEnd   *time.Time    `json:"period_end"`
}

type UpdateAdjustmentRequest struct {
	Name     *string `json:"name"`
	Amount   *int64  `json:"amount"`
	IsActive *bool   `json:"is_active"`
}

// TemporarilyChangeRequest creates a once-off override for a recurring
// adjustment, leaving the recurring row untouched.
type TemporarilyChangeRequest struct {
	Amount      int64     `json:"amount"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type Service interface {
	Create(ctx context.Context, req CreateAdjustmentRequest) (*Adjustment, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Adjustment, error)
	List(ctx context.Context) ([]*Adjustment, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateAdjustmentRequest) (*Adjustment, error)
	Delete(ctx context.Context, id snowflake.ID) error
	TemporarilyChange(ctx context.Context, id snowflake.ID, req TemporarilyChangeRequest) (*Adjustment, error)
	// ResolveForPeriod loads the candidate set and applies it against
	// the reference base. employeeID nil resolves company-wide only.
	ResolveForPeriod(ctx context.Context, employeeID *snowflake.ID, period recurrence.Period, referenceBaseCents int64) (Resolution, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, a *Adjustment) error
	FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*Adjustment, error)
	ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]*Adjustment, error)
	// ListCandidates returns active recurring adjustments plus once-off
	// adjustments overlapping the window, company-wide and
	// employee-specific alike.
	ListCandidates(ctx context.Context, db *gorm.DB, businessID snowflake.ID, period recurrence.Period) ([]Adjustment, error)
	CountOnceOff(ctx context.Context, db *gorm.DB, businessID snowflake.ID, employeeID, scheduleID snowflake.ID, periodStart, periodEnd time.Time) (int64, error)
	Update(ctx context.Context, db *gorm.DB, a *Adjustment) error
	Delete(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) error
}
