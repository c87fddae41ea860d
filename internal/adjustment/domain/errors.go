package domain

import "errors"

var (
	ErrAdjustmentNotFound    = errors.New("adjustment_not_found")
	ErrInvalidAdjustmentName = errors.New("invalid_adjustment_name")
	ErrInvalidValueType      = errors.New("invalid_value_type")
	ErrInvalidDirection      = errors.New("invalid_direction")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidPercentage     = errors.New("invalid_percentage")
	ErrInvalidPeriod         = errors.New("invalid_period")
	ErrInvalidScope          = errors.New("invalid_scope")
	ErrDuplicateAdjustment   = errors.New("duplicate_once_off_adjustment")
	ErrNotRecurring          = errors.New("adjustment_not_recurring")
)
