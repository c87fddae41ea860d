package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ValueType string

const (
	ValueTypeFixed      ValueType = "fixed"
	ValueTypePercentage ValueType = "percentage"
)

type Direction string

const (
	DirectionAddition  Direction = "addition"
	DirectionDeduction Direction = "deduction"
)

// Adjustment unifies benefits, deductions and once-off payments
// through nullable fields rather than subtypes.
//
// Scope: EmployeeID nil means company-wide, set means
// employee-specific. Timing: PeriodStart/PeriodEnd both nil means
// recurring (applies every period), both set means once-off (applies
// only to periods it overlaps, inclusive).
//
// Amount is in cents for fixed adjustments and in hundredths of a
// percent for percentage adjustments (500 = 5.00%, valid range
// 0..10000).
type Adjustment struct {
	ID         snowflake.ID  `gorm:"primaryKey"`
	BusinessID snowflake.ID  `gorm:"not null;index:idx_adjustments_business"`
	EmployeeID *snowflake.ID `gorm:"index:idx_adjustments_employee"`
	ScheduleID *snowflake.ID

	Name      string    `gorm:"type:text;not null"`
	ValueType ValueType `gorm:"type:text;not null"`
	Amount    int64     `gorm:"not null"`
	Direction Direction `gorm:"type:text;not null"`

	PeriodStart *time.Time
	PeriodEnd   *time.Time

	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Adjustment) TableName() string { return "adjustments" }

// IsOnceOff reports whether the adjustment is bound to a period window.
func (a Adjustment) IsOnceOff() bool {
	return a.PeriodStart != nil && a.PeriodEnd != nil
}

func (a Adjustment) IsCompanyWide() bool {
	return a.EmployeeID == nil
}

func (a *Adjustment) Validate() error {
	if a.Name == "" {
		return ErrInvalidAdjustmentName
	}
	switch a.ValueType {
	case ValueTypeFixed:
		if a.Amount < 0 {
			return ErrInvalidAmount
		}
	case ValueTypePercentage:
		if a.Amount < 0 || a.Amount > 10_000 {
			return ErrInvalidPercentage
		}
	default:
		return ErrInvalidValueType
	}
	switch a.Direction {
	case DirectionAddition, DirectionDeduction:
	default:
		return ErrInvalidDirection
	}
	if (a.PeriodStart == nil) != (a.PeriodEnd == nil) {
		return ErrInvalidPeriod
	}
	if a.IsOnceOff() && a.PeriodStart.After(*a.PeriodEnd) {
		return ErrInvalidPeriod
	}
	return nil
}
