package domain

import "errors"

var (
	ErrDepositNotFound     = errors.New("deposit_not_found")
	ErrInvalidAmount       = errors.New("invalid_deposit_amount")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrDepositNotPending   = errors.New("deposit_not_pending")
	ErrInvalidBusiness     = errors.New("invalid_business")
	ErrInsufficientFunds   = errors.New("insufficient_funds")
	ErrReservationNotFound = errors.New("reservation_not_found")
)
