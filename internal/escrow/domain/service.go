package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateDepositRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type Service interface {
	CreateDeposit(ctx context.Context, req CreateDepositRequest) (*EscrowDeposit, error)
	// ConfirmDeposit flips a pending deposit to completed on the
	// external bank confirmation event. RejectDeposit is its negative
	// counterpart. Both are terminal.
	ConfirmDeposit(ctx context.Context, id snowflake.ID) (*EscrowDeposit, error)
	RejectDeposit(ctx context.Context, id snowflake.ID) (*EscrowDeposit, error)
	ListDeposits(ctx context.Context) ([]*EscrowDeposit, error)
	AvailableBalance(ctx context.Context) (int64, error)
}

// Ledger is the funds-movement primitive used by the dispatcher. All
// three calls expect the caller's transaction; Reserve must run inside
// one so the balance check and the job transition are atomic under the
// business row lock.
type Ledger interface {
	// Reserve locks the business ledger row, checks the available
	// balance against amountCents and marks the job processing. The
	// returned token is the handle for Commit/Release.
	Reserve(ctx context.Context, tx *gorm.DB, businessID, jobID snowflake.ID, amountCents int64) (string, error)
	// Commit consumes reserved funds permanently: the job becomes
	// succeeded.
	Commit(ctx context.Context, tx *gorm.DB, token string) error
	// Release returns reserved funds to the balance immediately: the
	// job becomes failed with the given reason.
	Release(ctx context.Context, tx *gorm.DB, token string, reason string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, deposit *EscrowDeposit) error
	FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*EscrowDeposit, error)
	ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]*EscrowDeposit, error)
	// TransitionStatus performs a conditional pending -> next update and
	// reports whether a row actually changed.
	TransitionStatus(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID, next DepositStatus) (bool, error)
	// AvailableBalance is completed deposit authorized cents minus
	// cents held by succeeded and processing jobs.
	AvailableBalance(ctx context.Context, db *gorm.DB, businessID snowflake.ID) (int64, error)
}
