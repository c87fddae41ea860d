package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/employee/domain"
	"github.com/paygrid/disburse/internal/tenantctx"
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
		log:   p.Log.Named("employee.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateEmployeeRequest) (*domain.Employee, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrEmployeeNotFound
	}

	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}

	if req.GrossSalaryCents <= 0 {
		return nil, domain.ErrInvalidGrossSalary
	}

	if strings.TrimSpace(req.BankAccount) == "" || strings.TrimSpace(req.BankCode) == "" {
		return nil, domain.ErrInvalidBankDetails
	}

	employmentType := req.EmploymentType
	if employmentType == "" {
		employmentType = domain.EmploymentTypePermanent
	}

	weeklyHours := req.WeeklyHours
	if weeklyHours <= 0 {
		weeklyHours = 40
	}

	now := time.Now().UTC()
	e := domain.Employee{
		ID:               s.genID.Generate(),
		BusinessID:       businessID,
		FirstName:        firstName,
		LastName:         lastName,
		Email:            email,
		GrossSalaryCents: req.GrossSalaryCents,
		EmploymentType:   employmentType,
		WeeklyHours:      weeklyHours,
		BankAccount:      strings.TrimSpace(req.BankAccount),
		BankCode:         strings.TrimSpace(req.BankCode),
		Status:           domain.EmployeeStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Insert(ctx, s.db, &e); err != nil {
		return nil, err
	}

	return &e, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Employee, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrEmployeeNotFound
	}
	return s.repo.FindByID(ctx, s.db, businessID, id)
}

func (s *Service) List(ctx context.Context) ([]*domain.Employee, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrEmployeeNotFound
	}
	return s.repo.ListByBusiness(ctx, s.db, businessID)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateEmployeeRequest) (*domain.Employee, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status == domain.EmployeeStatusTerminated {
		return nil, domain.ErrEmployeeTerminated
	}

	if req.GrossSalaryCents != nil {
		if *req.GrossSalaryCents <= 0 {
			return nil, domain.ErrInvalidGrossSalary
		}
		e.GrossSalaryCents = *req.GrossSalaryCents
	}
	if req.WeeklyHours != nil && *req.WeeklyHours > 0 {
		e.WeeklyHours = *req.WeeklyHours
	}
	if req.BankAccount != nil {
		if strings.TrimSpace(*req.BankAccount) == "" {
			return nil, domain.ErrInvalidBankDetails
		}
		e.BankAccount = strings.TrimSpace(*req.BankAccount)
	}
	if req.BankCode != nil {
		if strings.TrimSpace(*req.BankCode) == "" {
			return nil, domain.ErrInvalidBankDetails
		}
		e.BankCode = strings.TrimSpace(*req.BankCode)
	}

	e.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Terminate(ctx context.Context, id snowflake.ID) error {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e.Status == domain.EmployeeStatusTerminated {
		return nil
	}

	e.Status = domain.EmployeeStatusTerminated
	e.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, e); err != nil {
		return err
	}

	s.log.Info("employee terminated", zap.Int64("employee_id", int64(id)))
	return nil
}
