package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/tax/domain"
	"github.com/paygrid/disburse/pkg/db"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository

	mu     sync.RWMutex
	cached *domain.Calculator
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tax.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Calculate(ctx context.Context, grossSalaryCents int64) (domain.Breakdown, error) {
	calc, err := s.ActiveCalculator(ctx)
	if err != nil {
		return domain.Breakdown{}, err
	}
	return calc.Calculate(grossSalaryCents)
}

func (s *Service) ActiveCalculator(ctx context.Context) (*domain.Calculator, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	table, err := s.repo.FindActive(ctx, s.db)
	if err != nil {
		return nil, err
	}
	calc, err := domain.NewCalculator(table)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = calc
	s.mu.Unlock()
	return calc, nil
}

func (s *Service) CreateTable(ctx context.Context, req domain.CreateTableRequest) (*domain.TaxTable, error) {
	raw, err := json.Marshal(req.Brackets)
	if err != nil {
		return nil, domain.ErrInvalidBrackets
	}

	table := domain.TaxTable{
		ID:                         s.genID.Generate(),
		Version:                    req.Version,
		Brackets:                   datatypes.JSON(raw),
		PrimaryRebateCents:         req.PrimaryRebateCents,
		UIFEmployeeRate:            req.UIFEmployeeRate,
		UIFEmployerRate:            req.UIFEmployerRate,
		UIFCeilingCents:            req.UIFCeilingCents,
		SDLRate:                    req.SDLRate,
		SDLExemptionThresholdCents: req.SDLExemptionThresholdCents,
		IsActive:                   false,
		CreatedAt:                  time.Now().UTC(),
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, &table); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrVersionAlreadyExists
		}
		return nil, err
	}

	if req.Activate {
		return s.ActivateTable(ctx, table.Version)
	}
	return &table, nil
}

func (s *Service) ListTables(ctx context.Context) ([]*domain.TaxTable, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) ActivateTable(ctx context.Context, version string) (*domain.TaxTable, error) {
	if err := s.repo.SetActive(ctx, s.db, version); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()

	s.log.Info("tax table activated", zap.String("version", version))
	return s.repo.FindByVersion(ctx, s.db, version)
}

// EnsureDefault seeds the shipped statutory table on first boot. Safe
// to call on every start.
func EnsureDefault(ctx context.Context, svc domain.Service) error {
	_, err := svc.ActiveCalculator(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNoActiveTable) {
		return err
	}
	_, err = svc.CreateTable(ctx, domain.DefaultTableZA2025())
	if errors.Is(err, domain.ErrVersionAlreadyExists) {
		return nil
	}
	return err
}
