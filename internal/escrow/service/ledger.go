package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/escrow/domain"
	"github.com/paygrid/disburse/internal/observability/metrics"
)

type LedgerParams struct {
	fx.In

	Log  *zap.Logger
	Repo domain.Repository
}

// ledger moves funds by flipping job status under the business row
// lock. It never mutates deposits; the available balance is always
// derived from deposits minus held jobs.
type ledger struct {
	log  *zap.Logger
	repo domain.Repository
}

func NewLedger(p LedgerParams) domain.Ledger {
	return &ledger{
		log:  p.Log.Named("escrow.ledger"),
		repo: p.Repo,
	}
}

func (l *ledger) Reserve(ctx context.Context, tx *gorm.DB, businessID, jobID snowflake.ID, amountCents int64) (string, error) {
	if amountCents <= 0 {
		return "", domain.ErrInvalidAmount
	}

	// Serialize concurrent reservations for the same business. The
	// balance check and the job transition below must observe and
	// extend the same ledger state.
	lockStart := time.Now()
	var lockedID snowflake.ID
	err := tx.WithContext(ctx).Raw(
		`SELECT id FROM businesses WHERE id = ? FOR UPDATE`,
		businessID,
	).Scan(&lockedID).Error
	if err != nil {
		return "", err
	}
	metrics.Dispatcher().ObserveLockWait(metrics.LockResourceBusinessLedger, time.Since(lockStart))
	if lockedID == 0 {
		return "", domain.ErrInvalidBusiness
	}

	balance, err := l.repo.AvailableBalance(ctx, tx, businessID)
	if err != nil {
		return "", err
	}
	if balance < amountCents {
		l.log.Warn("reservation rejected",
			zap.Int64("business_id", int64(businessID)),
			zap.Int64("requested_cents", amountCents),
			zap.Int64("available_cents", balance),
		)
		return "", domain.ErrInsufficientFunds
	}

	token := uuid.NewString()
	res := tx.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET status = 'processing', reservation_token = ?, updated_at = ?
		 WHERE id = ? AND business_id = ? AND status = 'pending'`,
		token, time.Now().UTC(), jobID, businessID,
	)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", domain.ErrReservationNotFound
	}
	return token, nil
}

func (l *ledger) Commit(ctx context.Context, tx *gorm.DB, token string) error {
	now := time.Now().UTC()
	res := tx.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET status = 'succeeded', processed_at = ?, updated_at = ?
		 WHERE reservation_token = ? AND status = 'processing'`,
		now, now, token,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (l *ledger) Release(ctx context.Context, tx *gorm.DB, token string, reason string) error {
	res := tx.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET status = 'failed', failure_reason = ?, updated_at = ?
		 WHERE reservation_token = ? AND status = 'processing'`,
		reason, time.Now().UTC(), token,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}
