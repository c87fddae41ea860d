package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paygrid/disburse/internal/adjustment/domain"
	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	businessdomain "github.com/paygrid/disburse/internal/business/domain"
	employeedomain "github.com/paygrid/disburse/internal/employee/domain"
	"github.com/paygrid/disburse/internal/recurrence"
	"github.com/paygrid/disburse/internal/tenantctx"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         domain.Repository
	EmployeeRepo employeedomain.Repository
	Business     businessdomain.Service
	Audit        auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	employeeRepo employeedomain.Repository
	business     businessdomain.Service
	audit        auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("adjustment.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		employeeRepo: p.EmployeeRepo,
		business:     p.Business,
		audit:        p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAdjustmentRequest) (*domain.Adjustment, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidScope
	}
	if _, err := s.business.RequireActive(ctx, businessID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := domain.Adjustment{
		ID:          s.genID.Generate(),
		BusinessID:  businessID,
		EmployeeID:  req.EmployeeID,
		ScheduleID:  req.ScheduleID,
		Name:        strings.TrimSpace(req.Name),
		ValueType:   req.ValueType,
		Amount:      req.Amount,
		Direction:   req.Direction,
		PeriodStart: truncateToDay(req.PeriodStart),
		PeriodEnd:   truncateToDay(req.PeriodEnd),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	// Employee-specific adjustments must point at an employee of the
	// same business.
	if a.EmployeeID != nil {
		if _, err := s.employeeRepo.FindByID(ctx, s.db, businessID, *a.EmployeeID); err != nil {
			return nil, domain.ErrInvalidScope
		}
	}

	if err := s.rejectDuplicateOnceOff(ctx, &a); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, &a); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.Entry{
		Action:     "adjustment.created",
		TargetType: "adjustment",
		TargetID:   targetID(a.ID),
		After:      auditSnapshot(&a),
	})
	return &a, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Adjustment, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidScope
	}
	return s.repo.FindByID(ctx, s.db, businessID, id)
}

func (s *Service) List(ctx context.Context) ([]*domain.Adjustment, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidScope
	}
	return s.repo.ListByBusiness(ctx, s.db, businessID)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateAdjustmentRequest) (*domain.Adjustment, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.business.RequireActive(ctx, a.BusinessID); err != nil {
		return nil, err
	}
	before := auditSnapshot(a)

	if req.Name != nil {
		a.Name = strings.TrimSpace(*req.Name)
	}
	if req.Amount != nil {
		a.Amount = *req.Amount
	}
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	a.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, a); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.Entry{
		Action:     "adjustment.updated",
		TargetType: "adjustment",
		TargetID:   targetID(a.ID),
		Before:     before,
		After:      auditSnapshot(a),
	})
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.business.RequireActive(ctx, a.BusinessID); err != nil {
		return err
	}

	businessID, _ := tenantctx.BusinessIDFromContext(ctx)
	if err := s.repo.Delete(ctx, s.db, businessID, id); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, auditdomain.Entry{
		Action:     "adjustment.deleted",
		TargetType: "adjustment",
		TargetID:   targetID(id),
		Before:     auditSnapshot(a),
	})
	return nil
}

// TemporarilyChange leaves the recurring adjustment untouched and
// creates a once-off with the same name and scope covering the given
// window. Resolution gives the once-off precedence inside the window;
// the recurring value resumes outside it on its own.
func (s *Service) TemporarilyChange(ctx context.Context, id snowflake.ID, req domain.TemporarilyChangeRequest) (*domain.Adjustment, error) {
	recurring, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.business.RequireActive(ctx, recurring.BusinessID); err != nil {
		return nil, err
	}
	if recurring.IsOnceOff() {
		return nil, domain.ErrNotRecurring
	}

	start := req.PeriodStart.UTC().Truncate(24 * time.Hour)
	end := req.PeriodEnd.UTC().Truncate(24 * time.Hour)

	now := time.Now().UTC()
	override := domain.Adjustment{
		ID:          s.genID.Generate(),
		BusinessID:  recurring.BusinessID,
		EmployeeID:  recurring.EmployeeID,
		ScheduleID:  recurring.ScheduleID,
		Name:        recurring.Name,
		ValueType:   recurring.ValueType,
		Amount:      req.Amount,
		Direction:   recurring.Direction,
		PeriodStart: &start,
		PeriodEnd:   &end,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := override.Validate(); err != nil {
		return nil, err
	}
	if err := s.rejectDuplicateOnceOff(ctx, &override); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, &override); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.Entry{
		Action:     "adjustment.temporarily_changed",
		TargetType: "adjustment",
		TargetID:   targetID(override.ID),
		Before:     auditSnapshot(recurring),
		After:      auditSnapshot(&override),
	})
	return &override, nil
}

func (s *Service) ResolveForPeriod(ctx context.Context, employeeID *snowflake.ID, period recurrence.Period, referenceBaseCents int64) (domain.Resolution, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return domain.Resolution{}, domain.ErrInvalidScope
	}

	candidates, err := s.repo.ListCandidates(ctx, s.db, businessID, period)
	if err != nil {
		return domain.Resolution{}, err
	}
	return domain.Resolve(candidates, employeeID, period, referenceBaseCents), nil
}

// rejectDuplicateOnceOff enforces uniqueness on
// (employee, schedule, period) for once-off employee adjustments tied
// to a schedule, so the same submission cannot land twice.
func (s *Service) rejectDuplicateOnceOff(ctx context.Context, a *domain.Adjustment) error {
	if !a.IsOnceOff() || a.EmployeeID == nil || a.ScheduleID == nil {
		return nil
	}
	count, err := s.repo.CountOnceOff(ctx, s.db, a.BusinessID, *a.EmployeeID, *a.ScheduleID, *a.PeriodStart, *a.PeriodEnd)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrDuplicateAdjustment
	}
	return nil
}

func targetID(id snowflake.ID) *string {
	s := id.String()
	return &s
}

func truncateToDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	day := t.UTC().Truncate(24 * time.Hour)
	return &day
}

func auditSnapshot(a *domain.Adjustment) map[string]any {
	snap := map[string]any{
		"name":       a.Name,
		"value_type": string(a.ValueType),
		"amount":     a.Amount,
		"direction":  string(a.Direction),
		"is_active":  a.IsActive,
	}
	if a.EmployeeID != nil {
		snap["employee_id"] = a.EmployeeID.String()
	}
	if a.PeriodStart != nil {
		snap["period_start"] = a.PeriodStart.Format("2006-01-02")
		snap["period_end"] = a.PeriodEnd.Format("2006-01-02")
	}
	return snap
}
