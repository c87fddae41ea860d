package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	businessdomain "github.com/paygrid/disburse/internal/business/domain"
	"github.com/paygrid/disburse/internal/escrow/domain"
	"github.com/paygrid/disburse/internal/tenantctx"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Business businessdomain.Service
	Audit    auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	business businessdomain.Service
	audit    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("escrow.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		business: p.Business,
		audit:    p.Audit,
	}
}

func (s *Service) CreateDeposit(ctx context.Context, req domain.CreateDepositRequest) (*domain.EscrowDeposit, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	if _, err := s.business.RequireActive(ctx, businessID); err != nil {
		return nil, err
	}

	if req.AmountCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "ZAR"
	}
	if len(currency) != 3 {
		return nil, domain.ErrInvalidCurrency
	}

	fee, authorized := domain.SplitFee(req.AmountCents)
	deposit := domain.EscrowDeposit{
		ID:              s.genID.Generate(),
		BusinessID:      businessID,
		Reference:       ulid.Make().String(),
		AmountCents:     req.AmountCents,
		FeeCents:        fee,
		AuthorizedCents: authorized,
		Currency:        currency,
		Status:          domain.DepositStatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &deposit); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.Entry{
		Action:     "escrow.deposit_created",
		TargetType: "escrow_deposit",
		TargetID:   targetID(deposit.ID),
		After: map[string]any{
			"reference":        deposit.Reference,
			"amount_cents":     deposit.AmountCents,
			"fee_cents":        deposit.FeeCents,
			"authorized_cents": deposit.AuthorizedCents,
			"currency":         deposit.Currency,
		},
	})
	return &deposit, nil
}

func (s *Service) ConfirmDeposit(ctx context.Context, id snowflake.ID) (*domain.EscrowDeposit, error) {
	return s.transition(ctx, id, domain.DepositStatusCompleted, "escrow.deposit_completed")
}

func (s *Service) RejectDeposit(ctx context.Context, id snowflake.ID) (*domain.EscrowDeposit, error) {
	return s.transition(ctx, id, domain.DepositStatusRejected, "escrow.deposit_rejected")
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, next domain.DepositStatus, action string) (*domain.EscrowDeposit, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}

	changed, err := s.repo.TransitionStatus(ctx, s.db, businessID, id, next)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Either missing or already terminal; disambiguate for the
		// caller.
		if _, err := s.repo.FindByID(ctx, s.db, businessID, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrDepositNotPending
	}

	deposit, err := s.repo.FindByID(ctx, s.db, businessID, id)
	if err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.Entry{
		Action:     action,
		TargetType: "escrow_deposit",
		TargetID:   targetID(deposit.ID),
		After: map[string]any{
			"reference": deposit.Reference,
			"status":    string(deposit.Status),
		},
	})
	return deposit, nil
}

func (s *Service) ListDeposits(ctx context.Context) ([]*domain.EscrowDeposit, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	return s.repo.ListByBusiness(ctx, s.db, businessID)
}

func (s *Service) AvailableBalance(ctx context.Context) (int64, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return 0, domain.ErrInvalidBusiness
	}
	return s.repo.AvailableBalance(ctx, s.db, businessID)
}

func targetID(id snowflake.ID) *string {
	s := id.String()
	return &s
}
