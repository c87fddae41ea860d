package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	businessdomain "github.com/paygrid/disburse/internal/business/domain"
	"github.com/paygrid/disburse/internal/clock"
	employeedomain "github.com/paygrid/disburse/internal/employee/domain"
	"github.com/paygrid/disburse/internal/recurrence"
	"github.com/paygrid/disburse/internal/schedule/domain"
	"github.com/paygrid/disburse/internal/tenantctx"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	EmployeeRepo employeedomain.Repository
	Business     businessdomain.Service
	Audit        auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	employeeRepo employeedomain.Repository
	business     businessdomain.Service
	audit        auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("schedule.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		employeeRepo: p.EmployeeRepo,
		business:     p.Business,
		audit:        p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateScheduleRequest) (*domain.ScheduleWithRecipients, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	if _, err := s.business.RequireActive(ctx, businessID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	switch req.Kind {
	case domain.KindGeneric:
		if req.AmountCents == nil || *req.AmountCents <= 0 {
			return nil, domain.ErrInvalidAmount
		}
	case domain.KindPayroll:
		// Payroll amounts come from salaries, not from the schedule.
	default:
		return nil, domain.ErrInvalidKind
	}

	if len(req.Recipients) == 0 {
		return nil, domain.ErrNoRecipients
	}
	if err := s.validateRecipients(ctx, businessID, req.Recipients); err != nil {
		return nil, err
	}

	descriptor, scheduleType, err := buildDescriptor(req.RunAt, req.Frequency)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	next, ok := recurrence.NextRun(descriptor, now)
	var nextRunAt *time.Time
	if ok {
		nextRunAt = &next
	} else if scheduleType == domain.TypeOneTime {
		// A one-time schedule in the past would never fire.
		return nil, recurrence.ErrInvalidDescriptor
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "ZAR"
	}

	id := s.genID.Generate()
	sched := domain.Schedule{
		ID:           id,
		BusinessID:   businessID,
		Kind:         req.Kind,
		Name:         name,
		Reference:    scheduleReference(name, id),
		AmountCents:  req.AmountCents,
		Currency:     currency,
		Spec:         descriptor.String(),
		ScheduleType: scheduleType,
		Status:       domain.StatusActive,
		NextRunAt:    nextRunAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &sched, req.Recipients); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.Entry{
		Action:     "schedule.created",
		TargetType: "schedule",
		TargetID:   targetID(sched.ID),
		After:      auditSnapshot(&sched),
	})

	return &domain.ScheduleWithRecipients{Schedule: sched, Recipients: req.Recipients}, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.ScheduleWithRecipients, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}

	sched, err := s.repo.FindByID(ctx, s.db, businessID, id)
	if err != nil {
		return nil, err
	}
	recipients, err := s.repo.ListRecipients(ctx, s.db, sched.ID)
	if err != nil {
		return nil, err
	}
	return &domain.ScheduleWithRecipients{Schedule: *sched, Recipients: recipients}, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.Schedule, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	return s.repo.ListByBusiness(ctx, s.db, businessID)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateScheduleRequest) (*domain.ScheduleWithRecipients, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	if _, err := s.business.RequireActive(ctx, businessID); err != nil {
		return nil, err
	}

	sched, err := s.repo.FindByID(ctx, s.db, businessID, id)
	if err != nil {
		return nil, err
	}
	if sched.Status == domain.StatusCancelled {
		return nil, domain.ErrInvalidTransition
	}
	before := auditSnapshot(sched)

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		sched.Name = name
	}
	if req.AmountCents != nil {
		if sched.Kind != domain.KindGeneric || *req.AmountCents <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		sched.AmountCents = req.AmountCents
	}

	// Changing the cadence rebuilds the descriptor and recomputes the
	// next occurrence from now.
	if req.RunAt != nil || req.Frequency != nil {
		current, err := sched.Descriptor()
		if err != nil {
			return nil, err
		}
		runAt := current.Anchor
		if req.RunAt != nil {
			runAt = *req.RunAt
		}
		freq := current.Frequency
		if req.Frequency != nil {
			freq = *req.Frequency
		}

		descriptor, scheduleType, err := buildDescriptor(runAt, freq)
		if err != nil {
			return nil, err
		}
		sched.Spec = descriptor.String()
		sched.ScheduleType = scheduleType
		sched.NextRunAt = nil
		if next, ok := recurrence.NextRun(descriptor, s.clock.Now()); ok {
			sched.NextRunAt = &next
		}
	}

	if req.Recipients != nil {
		if len(req.Recipients) == 0 {
			return nil, domain.ErrNoRecipients
		}
		if err := s.validateRecipients(ctx, businessID, req.Recipients); err != nil {
			return nil, err
		}
		if err := s.repo.ReplaceRecipients(ctx, s.db, sched.ID, req.Recipients); err != nil {
			return nil, err
		}
	}

	sched.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, sched); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.Entry{
		Action:     "schedule.updated",
		TargetType: "schedule",
		TargetID:   targetID(sched.ID),
		Before:     before,
		After:      auditSnapshot(sched),
	})

	recipients, err := s.repo.ListRecipients(ctx, s.db, sched.ID)
	if err != nil {
		return nil, err
	}
	return &domain.ScheduleWithRecipients{Schedule: *sched, Recipients: recipients}, nil
}

func (s *Service) Pause(ctx context.Context, id snowflake.ID) (*domain.Schedule, error) {
	return s.transition(ctx, id, domain.StatusActive, domain.StatusPaused, "schedule.paused", nil)
}

func (s *Service) Resume(ctx context.Context, id snowflake.ID) (*domain.Schedule, error) {
	return s.transition(ctx, id, domain.StatusPaused, domain.StatusActive, "schedule.resumed",
		func(sched *domain.Schedule) error {
			descriptor, err := sched.Descriptor()
			if err != nil {
				return err
			}
			// Fresh from now: missed occurrences are not backfilled.
			sched.NextRunAt = nil
			if next, ok := recurrence.NextRun(descriptor, s.clock.Now()); ok {
				sched.NextRunAt = &next
			}
			return nil
		})
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*domain.Schedule, error) {
	sched, err := s.transition(ctx, id, "", domain.StatusCancelled, "schedule.cancelled",
		func(sched *domain.Schedule) error {
			sched.NextRunAt = nil
			return nil
		})
	return sched, err
}

func (s *Service) PreviewPayPeriod(ctx context.Context, id snowflake.ID) (recurrence.Period, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return recurrence.Period{}, domain.ErrInvalidBusiness
	}

	sched, err := s.repo.FindByID(ctx, s.db, businessID, id)
	if err != nil {
		return recurrence.Period{}, err
	}
	descriptor, err := sched.Descriptor()
	if err != nil {
		return recurrence.Period{}, err
	}

	occurrence, ok := recurrence.NextRun(descriptor, s.clock.Now())
	if !ok {
		return recurrence.Period{}, domain.ErrScheduleExhausted
	}
	return recurrence.PayPeriod(descriptor, occurrence), nil
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, from, to domain.ScheduleStatus, action string, mutate func(*domain.Schedule) error) (*domain.Schedule, error) {
	businessID, ok := tenantctx.BusinessIDFromContext(ctx)
	if !ok || businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	if _, err := s.business.RequireActive(ctx, businessID); err != nil {
		return nil, err
	}

	sched, err := s.repo.FindByID(ctx, s.db, businessID, id)
	if err != nil {
		return nil, err
	}
	if sched.Status == domain.StatusCancelled {
		return nil, domain.ErrInvalidTransition
	}
	if from != "" && sched.Status != from {
		return nil, domain.ErrInvalidTransition
	}
	before := auditSnapshot(sched)

	sched.Status = to
	if mutate != nil {
		if err := mutate(sched); err != nil {
			return nil, err
		}
	}
	sched.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, sched); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, auditdomain.Entry{
		Action:     action,
		TargetType: "schedule",
		TargetID:   targetID(sched.ID),
		Before:     before,
		After:      auditSnapshot(sched),
	})
	return sched, nil
}

func (s *Service) validateRecipients(ctx context.Context, businessID snowflake.ID, recipients []snowflake.ID) error {
	seen := make(map[snowflake.ID]bool, len(recipients))
	for _, id := range recipients {
		if seen[id] {
			return domain.ErrInvalidRecipient
		}
		seen[id] = true
	}

	found, err := s.employeeRepo.FindByIDs(ctx, s.db, businessID, recipients)
	if err != nil {
		return err
	}
	if len(found) != len(recipients) {
		return domain.ErrInvalidRecipient
	}
	for _, e := range found {
		if e.Status != employeedomain.EmployeeStatusActive {
			return domain.ErrInvalidRecipient
		}
	}
	return nil
}

func buildDescriptor(runAt time.Time, freq recurrence.Frequency) (recurrence.Descriptor, domain.ScheduleType, error) {
	if freq == "" || freq == recurrence.FrequencyOneTime {
		d, err := recurrence.FromOneTime(runAt)
		return d, domain.TypeOneTime, err
	}
	d, err := recurrence.FromRecurring(runAt, freq)
	return d, domain.TypeRecurring, err
}

func scheduleReference(name string, id snowflake.ID) string {
	return fmt.Sprintf("%s-%s", slug.Make(name), strings.ToLower(id.Base36()))
}

func targetID(id snowflake.ID) *string {
	s := id.String()
	return &s
}

func auditSnapshot(sched *domain.Schedule) map[string]any {
	snap := map[string]any{
		"name":   sched.Name,
		"kind":   string(sched.Kind),
		"spec":   sched.Spec,
		"status": string(sched.Status),
	}
	if sched.AmountCents != nil {
		snap["amount_cents"] = *sched.AmountCents
	}
	if sched.NextRunAt != nil {
		snap["next_run_at"] = sched.NextRunAt.Format(time.RFC3339)
	}
	return snap
}
