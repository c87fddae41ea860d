package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	businessdomain "github.com/paygrid/disburse/internal/business/domain"
	"github.com/paygrid/disburse/internal/clock"
	employeedomain "github.com/paygrid/disburse/internal/employee/domain"
	employeerepository "github.com/paygrid/disburse/internal/employee/repository"
	"github.com/paygrid/disburse/internal/recurrence"
	"github.com/paygrid/disburse/internal/schedule/domain"
	"github.com/paygrid/disburse/internal/schedule/repository"
	"github.com/paygrid/disburse/internal/tenantctx"
)

type stubBusinessSvc struct {
	business *businessdomain.Business
}

func (s *stubBusinessSvc) Create(ctx context.Context, req businessdomain.CreateBusinessRequest) (*businessdomain.Business, error) {
	return s.business, nil
}
func (s *stubBusinessSvc) GetByID(ctx context.Context, id snowflake.ID) (*businessdomain.Business, error) {
	return s.business, nil
}
func (s *stubBusinessSvc) RequireActive(ctx context.Context, id snowflake.ID) (*businessdomain.Business, error) {
	if s.business == nil || !s.business.CanPerformActions() {
		return nil, businessdomain.ErrBusinessInactive
	}
	return s.business, nil
}
func (s *stubBusinessSvc) UpdateStatus(ctx context.Context, id snowflake.ID, status businessdomain.BusinessStatus) (*businessdomain.Business, error) {
	return s.business, nil
}

type recordingAuditSvc struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAuditSvc) Record(ctx context.Context, entry auditdomain.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, entry.Action)
	return nil
}

func (a *recordingAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type scheduleFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	svc      domain.Service
	audit    *recordingAuditSvc
	business *businessdomain.Business
	employee *employeedomain.Employee
	ctx      context.Context
}

func newScheduleFixture(t *testing.T, start time.Time) *scheduleFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&businessdomain.Business{},
		&employeedomain.Employee{},
		&domain.Schedule{},
		&domain.ScheduleRecipient{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(start)

	business := &businessdomain.Business{
		ID:        node.Generate(),
		Name:      "Cape Traders",
		Slug:      "cape-traders",
		Status:    businessdomain.BusinessStatusActive,
		CreatedAt: start,
		UpdatedAt: start,
	}
	require.NoError(t, db.Create(business).Error)

	employee := &employeedomain.Employee{
		ID:               node.Generate(),
		BusinessID:       business.ID,
		FirstName:        "Sipho",
		LastName:         "Dlamini",
		Email:            "sipho@capetraders.example",
		GrossSalaryCents: 3_000_000,
		EmploymentType:   employeedomain.EmploymentTypePermanent,
		WeeklyHours:      40,
		BankAccount:      "9876543210",
		BankCode:         "470010",
		Status:           employeedomain.EmployeeStatusActive,
		CreatedAt:        start,
		UpdatedAt:        start,
	}
	require.NoError(t, db.Create(employee).Error)

	audit := &recordingAuditSvc{}
	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fakeClock,
		Repo:         repository.Provide(),
		EmployeeRepo: employeerepository.Provide(),
		Business:     &stubBusinessSvc{business: business},
		Audit:        audit,
	})

	return &scheduleFixture{
		db:       db,
		node:     node,
		clock:    fakeClock,
		svc:      svc,
		audit:    audit,
		business: business,
		employee: employee,
		ctx:      tenantctx.WithBusinessID(context.Background(), business.ID),
	}
}

func TestCreateSchedule_MonthlyPayroll(t *testing.T) {
	start := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	f := newScheduleFixture(t, start)

	anchor := time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC)
	resp, err := f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindPayroll,
		Name:       "Monthly Payroll",
		RunAt:      anchor,
		Frequency:  recurrence.FrequencyMonthly,
		Recipients: []snowflake.ID{f.employee.ID},
	})
	require.NoError(t, err)

	sched := resp.Schedule
	assert.Equal(t, domain.StatusActive, sched.Status)
	assert.Equal(t, domain.TypeRecurring, sched.ScheduleType)
	require.NotNil(t, sched.NextRunAt)
	assert.Equal(t, anchor, sched.NextRunAt.UTC())
	assert.Equal(t, []snowflake.ID{f.employee.ID}, resp.Recipients)
	assert.Contains(t, sched.Reference, "monthly-payroll-")

	assert.Contains(t, f.audit.actions, "schedule.created")
}

func TestCreateSchedule_Validation(t *testing.T) {
	start := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	f := newScheduleFixture(t, start)
	anchor := start.AddDate(0, 0, 5)

	_, err := f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindGeneric,
		Name:       "Stipends",
		RunAt:      anchor,
		Frequency:  recurrence.FrequencyMonthly,
		Recipients: []snowflake.ID{f.employee.ID},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	amount := int64(50_000)
	_, err = f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:        domain.KindGeneric,
		Name:        "Stipends",
		AmountCents: &amount,
		RunAt:       anchor,
		Frequency:   recurrence.FrequencyMonthly,
	})
	assert.ErrorIs(t, err, domain.ErrNoRecipients)

	_, err = f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindPayroll,
		Name:       "Bad cadence",
		RunAt:      anchor,
		Frequency:  recurrence.Frequency("fortnightly"),
		Recipients: []snowflake.ID{f.employee.ID},
	})
	assert.ErrorIs(t, err, recurrence.ErrInvalidDescriptor)

	// A one-time schedule anchored in the past can never fire.
	_, err = f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindPayroll,
		Name:       "Back pay",
		RunAt:      start.AddDate(0, 0, -1),
		Frequency:  recurrence.FrequencyOneTime,
		Recipients: []snowflake.ID{f.employee.ID},
	})
	assert.ErrorIs(t, err, recurrence.ErrInvalidDescriptor)
}

func TestPauseResume_SkipsMissedOccurrences(t *testing.T) {
	start := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	f := newScheduleFixture(t, start)

	anchor := time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC)
	resp, err := f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindPayroll,
		Name:       "Monthly Payroll",
		RunAt:      anchor,
		Frequency:  recurrence.FrequencyMonthly,
		Recipients: []snowflake.ID{f.employee.ID},
	})
	require.NoError(t, err)

	paused, err := f.svc.Pause(f.ctx, resp.Schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, paused.Status)

	// Two occurrences pass while paused.
	f.clock.Set(time.Date(2026, time.March, 20, 8, 0, 0, 0, time.UTC))

	resumed, err := f.svc.Resume(f.ctx, resp.Schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, resumed.Status)
	require.NotNil(t, resumed.NextRunAt)
	assert.Equal(t, time.Date(2026, time.March, 25, 9, 0, 0, 0, time.UTC), resumed.NextRunAt.UTC())

	assert.Contains(t, f.audit.actions, "schedule.paused")
	assert.Contains(t, f.audit.actions, "schedule.resumed")
}

func TestResume_RequiresPaused(t *testing.T) {
	start := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	f := newScheduleFixture(t, start)

	resp, err := f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindPayroll,
		Name:       "Monthly Payroll",
		RunAt:      start.AddDate(0, 0, 5),
		Frequency:  recurrence.FrequencyMonthly,
		Recipients: []snowflake.ID{f.employee.ID},
	})
	require.NoError(t, err)

	_, err = f.svc.Resume(f.ctx, resp.Schedule.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel_IsTerminal(t *testing.T) {
	start := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	f := newScheduleFixture(t, start)

	resp, err := f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindPayroll,
		Name:       "Monthly Payroll",
		RunAt:      start.AddDate(0, 0, 5),
		Frequency:  recurrence.FrequencyMonthly,
		Recipients: []snowflake.ID{f.employee.ID},
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(f.ctx, resp.Schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.NextRunAt)

	_, err = f.svc.Pause(f.ctx, resp.Schedule.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.Resume(f.ctx, resp.Schedule.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPreviewPayPeriod_Monthly(t *testing.T) {
	start := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	f := newScheduleFixture(t, start)

	anchor := time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC)
	resp, err := f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindPayroll,
		Name:       "Monthly Payroll",
		RunAt:      anchor,
		Frequency:  recurrence.FrequencyMonthly,
		Recipients: []snowflake.ID{f.employee.ID},
	})
	require.NoError(t, err)

	period, err := f.svc.PreviewPayPeriod(f.ctx, resp.Schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), period.Start)
	assert.Equal(t, time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC), period.End)
}

func TestInactiveBusinessBlocksWrites(t *testing.T) {
	start := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	f := newScheduleFixture(t, start)

	resp, err := f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindPayroll,
		Name:       "Monthly Payroll",
		RunAt:      start.AddDate(0, 0, 5),
		Frequency:  recurrence.FrequencyMonthly,
		Recipients: []snowflake.ID{f.employee.ID},
	})
	require.NoError(t, err)

	f.business.Status = businessdomain.BusinessStatusSuspended

	_, err = f.svc.Create(f.ctx, domain.CreateScheduleRequest{
		Kind:       domain.KindPayroll,
		Name:       "Second Run",
		RunAt:      start.AddDate(0, 0, 6),
		Frequency:  recurrence.FrequencyMonthly,
		Recipients: []snowflake.ID{f.employee.ID},
	})
	assert.ErrorIs(t, err, businessdomain.ErrBusinessInactive)

	_, err = f.svc.Pause(f.ctx, resp.Schedule.ID)
	assert.ErrorIs(t, err, businessdomain.ErrBusinessInactive)
}
