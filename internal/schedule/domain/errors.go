package domain

import "errors"

var (
	ErrScheduleNotFound  = errors.New("schedule_not_found")
	ErrInvalidName       = errors.New("invalid_schedule_name")
	ErrInvalidKind       = errors.New("invalid_schedule_kind")
	ErrInvalidAmount     = errors.New("invalid_schedule_amount")
	ErrInvalidRecipient  = errors.New("invalid_recipient")
	ErrNoRecipients      = errors.New("no_recipients")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrInvalidBusiness   = errors.New("invalid_business")
	ErrScheduleExhausted = errors.New("schedule_exhausted")
)
