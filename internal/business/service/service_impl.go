package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/business/domain"
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
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("business.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateBusinessRequest) (*domain.Business, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	b := domain.Business{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		Status:    domain.BusinessStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &b); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugAlreadyExists
		}
		return nil, err
	}

	return &b, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Business, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) RequireActive(ctx context.Context, id snowflake.ID) (*domain.Business, error) {
	b, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !b.CanPerformActions() {
		return nil, domain.ErrBusinessInactive
	}
	return b, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.BusinessStatus) (*domain.Business, error) {
	switch status {
	case domain.BusinessStatusActive, domain.BusinessStatusSuspended, domain.BusinessStatusBanned:
	default:
		return nil, domain.ErrInvalidStatus
	}

	b, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, b); err != nil {
		return nil, err
	}

	s.log.Info("business status updated",
		zap.Int64("business_id", int64(b.ID)),
		zap.String("status", string(status)),
	)
	return b, nil
}
