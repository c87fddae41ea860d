package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusCompleted DepositStatus = "completed"
	DepositStatusRejected  DepositStatus = "rejected"
)

// FeeRate is the platform fee withheld from every deposit. Only the
// remainder (authorized amount) is ever spendable.
var FeeRate = decimal.NewFromFloat(0.015)

// EscrowDeposit is immutable once completed: the authorized amount it
// contributed to the balance can never change retroactively.
type EscrowDeposit struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	BusinessID snowflake.ID `gorm:"not null;index:idx_escrow_deposits_business"`
	Reference  string       `gorm:"type:text;not null;uniqueIndex"`

	AmountCents     int64  `gorm:"not null"`
	FeeCents        int64  `gorm:"not null"`
	AuthorizedCents int64  `gorm:"not null"`
	Currency        string `gorm:"type:text;not null;default:'ZAR'"`

	Status      DepositStatus `gorm:"type:text;not null;default:'pending'"`
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EscrowDeposit) TableName() string { return "escrow_deposits" }

// SplitFee computes the fee and authorized portions of a deposit
// amount, fee rounded half-up to whole cents.
func SplitFee(amountCents int64) (feeCents, authorizedCents int64) {
	fee := FeeRate.Mul(decimal.NewFromInt(amountCents)).Round(0).IntPart()
	return fee, amountCents - fee
}
