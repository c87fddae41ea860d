package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/escrow/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, deposit *domain.EscrowDeposit) error {
	return db.WithContext(ctx).Create(deposit).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*domain.EscrowDeposit, error) {
	var deposit domain.EscrowDeposit
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessID, id).
		First(&deposit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDepositNotFound
		}
		return nil, err
	}
	return &deposit, nil
}

func (r *repo) ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]*domain.EscrowDeposit, error) {
	var deposits []*domain.EscrowDeposit
	err := db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at DESC").
		Find(&deposits).Error
	if err != nil {
		return nil, err
	}
	return deposits, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID, next domain.DepositStatus) (bool, error) {
	updates := map[string]any{"status": next}
	if next == domain.DepositStatusCompleted {
		updates["completed_at"] = time.Now().UTC()
	}

	res := db.WithContext(ctx).
		Model(&domain.EscrowDeposit{}).
		Where("business_id = ? AND id = ? AND status = ?", businessID, id, domain.DepositStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AvailableBalance(ctx context.Context, db *gorm.DB, businessID snowflake.ID) (int64, error) {
	var deposited int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(authorized_cents), 0)
		 FROM escrow_deposits
		 WHERE business_id = ? AND status = ?`,
		businessID, domain.DepositStatusCompleted,
	).Scan(&deposited).Error
	if err != nil {
		return 0, err
	}

	var held int64
	err = db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM jobs
		 WHERE business_id = ? AND status IN (?, ?)`,
		businessID, "succeeded", "processing",
	).Scan(&held).Error
	if err != nil {
		return 0, err
	}

	return deposited - held, nil
}
