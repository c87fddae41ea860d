package dispatcher

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

	adjustmentdomain "github.com/paygrid/disburse/internal/adjustment/domain"
	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	businessdomain "github.com/paygrid/disburse/internal/business/domain"
	"github.com/paygrid/disburse/internal/clock"
	employeedomain "github.com/paygrid/disburse/internal/employee/domain"
	employeerepository "github.com/paygrid/disburse/internal/employee/repository"
	escrowdomain "github.com/paygrid/disburse/internal/escrow/domain"
	escrowrepository "github.com/paygrid/disburse/internal/escrow/repository"
	escrowservice "github.com/paygrid/disburse/internal/escrow/service"
	jobdomain "github.com/paygrid/disburse/internal/job/domain"
	jobrepository "github.com/paygrid/disburse/internal/job/repository"
	"github.com/paygrid/disburse/internal/notify"
	raildomain "github.com/paygrid/disburse/internal/rail/domain"
	"github.com/paygrid/disburse/internal/recurrence"
	scheduledomain "github.com/paygrid/disburse/internal/schedule/domain"
	schedulerepository "github.com/paygrid/disburse/internal/schedule/repository"
	taxdomain "github.com/paygrid/disburse/internal/tax/domain"
)

// Mocks for dependencies

type fakeExecutor struct {
	mu       sync.Mutex
	failWith error
	requests []raildomain.ExecutionRequest
}

func (f *fakeExecutor) Provider() string { return "fake" }

func (f *fakeExecutor) Execute(ctx context.Context, req raildomain.ExecutionRequest) (raildomain.ExecutionResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fail := f.failWith
	f.mu.Unlock()
	if fail != nil {
		return raildomain.ExecutionResult{}, fail
	}
	return raildomain.ExecutionResult{ProviderRef: "fake-" + req.Reference}, nil
}

func (f *fakeExecutor) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *captureNotifier) Notify(ctx context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) byType(t notify.EventType) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type mockTaxSvc struct {
	netCents int64
}

func (m *mockTaxSvc) Calculate(ctx context.Context, grossSalaryCents int64) (taxdomain.Breakdown, error) {
	return taxdomain.Breakdown{GrossCents: grossSalaryCents, NetCents: m.netCents}, nil
}
func (m *mockTaxSvc) ActiveCalculator(ctx context.Context) (*taxdomain.Calculator, error) {
	return nil, nil
}
func (m *mockTaxSvc) CreateTable(ctx context.Context, req taxdomain.CreateTableRequest) (*taxdomain.TaxTable, error) {
	return nil, nil
}
func (m *mockTaxSvc) ListTables(ctx context.Context) ([]*taxdomain.TaxTable, error) {
	return nil, nil
}
func (m *mockTaxSvc) ActivateTable(ctx context.Context, version string) (*taxdomain.TaxTable, error) {
	return nil, nil
}

type mockAdjustmentSvc struct {
	resolution adjustmentdomain.Resolution
}

func (m *mockAdjustmentSvc) Create(ctx context.Context, req adjustmentdomain.CreateAdjustmentRequest) (*adjustmentdomain.Adjustment, error) {
	return nil, nil
}
func (m *mockAdjustmentSvc) GetByID(ctx context.Context, id snowflake.ID) (*adjustmentdomain.Adjustment, error) {
	return nil, nil
}
func (m *mockAdjustmentSvc) List(ctx context.Context) ([]*adjustmentdomain.Adjustment, error) {
	return nil, nil
}
func (m *mockAdjustmentSvc) Update(ctx context.Context, id snowflake.ID, req adjustmentdomain.UpdateAdjustmentRequest) (*adjustmentdomain.Adjustment, error) {
	return nil, nil
}
func (m *mockAdjustmentSvc) Delete(ctx context.Context, id snowflake.ID) error { return nil }
func (m *mockAdjustmentSvc) TemporarilyChange(ctx context.Context, id snowflake.ID, req adjustmentdomain.TemporarilyChangeRequest) (*adjustmentdomain.Adjustment, error) {
	return nil, nil
}
func (m *mockAdjustmentSvc) ResolveForPeriod(ctx context.Context, employeeID *snowflake.ID, period recurrence.Period, referenceBaseCents int64) (adjustmentdomain.Resolution, error) {
	return m.resolution, nil
}

type mockAuditSvc struct {
	mu      sync.Mutex
	entries []auditdomain.Entry
}

func (m *mockAuditSvc) Record(ctx context.Context, entry auditdomain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func (m *mockAuditSvc) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry.Action)
	}
	return out
}

type mockAuthzSvc struct{}

func (m *mockAuthzSvc) Authorize(ctx context.Context, actor string, businessID string, object string, action string) error {
	return nil
}

// harness wires a dispatcher against in-memory sqlite with real
// repositories and the real escrow ledger; only external edges (tax,
// adjustments, rail, audit, authz, notify) are mocked.
type harness struct {
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	disp       *Dispatcher
	executor   *fakeExecutor
	notifier   *captureNotifier
	audit      *mockAuditSvc
	tax        *mockTaxSvc
	adjust     *mockAdjustmentSvc
	escrowRepo escrowdomain.Repository
	businessID snowflake.ID
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	// SQLite support hack: remove FOR UPDATE clauses
	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&businessdomain.Business{},
		&employeedomain.Employee{},
		&scheduledomain.Schedule{},
		&scheduledomain.ScheduleRecipient{},
		&jobdomain.Job{},
		&escrowdomain.EscrowDeposit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(start)

	escrowRepo := escrowrepository.Provide()
	ledger := escrowservice.NewLedger(escrowservice.LedgerParams{
		Log:  zap.NewNop(),
		Repo: escrowRepo,
	})

	executor := &fakeExecutor{}
	notifier := &captureNotifier{}
	audit := &mockAuditSvc{}
	tax := &mockTaxSvc{}
	adjust := &mockAdjustmentSvc{}

	disp, err := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         fakeClock,
		ScheduleRepo:  schedulerepository.Provide(),
		EmployeeRepo:  employeerepository.Provide(),
		JobRepo:       jobrepository.Provide(),
		TaxSvc:        tax,
		AdjustmentSvc: adjust,
		Ledger:        ledger,
		Executor:      executor,
		AuditSvc:      audit,
		AuthzSvc:      &mockAuthzSvc{},
		Notifier:      notifier,
		Config: Config{
			BatchSize:         10,
			Workers:           1,
			ExecutionTimeout:  time.Second,
			RecoveryThreshold: 15 * time.Minute,
		},
	})
	require.NoError(t, err)

	h := &harness{
		db:         db,
		node:       node,
		clock:      fakeClock,
		disp:       disp,
		executor:   executor,
		notifier:   notifier,
		audit:      audit,
		tax:        tax,
		adjust:     adjust,
		escrowRepo: escrowRepo,
	}
	h.businessID = h.createBusiness(t)
	return h
}

func (h *harness) createBusiness(t *testing.T) snowflake.ID {
	t.Helper()
	business := &businessdomain.Business{
		ID:     h.node.Generate(),
		Name:   "Acme Mining",
		Slug:   "acme-mining",
		Status: businessdomain.BusinessStatusActive,
	}
	require.NoError(t, h.db.Create(business).Error)
	return business.ID
}

func (h *harness) createEmployee(t *testing.T, grossCents int64) *employeedomain.Employee {
	t.Helper()
	emp := &employeedomain.Employee{
		ID:               h.node.Generate(),
		BusinessID:       h.businessID,
		FirstName:        "Thandi",
		LastName:         "Nkosi",
		Email:            "thandi@acme.example",
		GrossSalaryCents: grossCents,
		BankAccount:      "1234567890",
		BankCode:         "632005",
		Status:           employeedomain.EmployeeStatusActive,
	}
	require.NoError(t, h.db.Create(emp).Error)
	return emp
}

func (h *harness) createSchedule(t *testing.T, kind scheduledomain.ScheduleKind, amountCents *int64, runAt time.Time, freq recurrence.Frequency, recipients ...snowflake.ID) *scheduledomain.Schedule {
	t.Helper()
	desc, err := recurrence.FromRecurring(runAt, freq)
	require.NoError(t, err)
	sched := &scheduledomain.Schedule{
		ID:           h.node.Generate(),
		BusinessID:   h.businessID,
		Kind:         kind,
		Name:         "monthly run",
		Reference:    fmt.Sprintf("monthly-run-%s", strings.ToLower(h.node.Generate().Base36())),
		AmountCents:  amountCents,
		Currency:     "ZAR",
		Spec:         desc.String(),
		ScheduleType: scheduledomain.TypeRecurring,
		Status:       scheduledomain.StatusActive,
		NextRunAt:    &runAt,
	}
	require.NoError(t, h.db.Create(sched).Error)
	for _, empID := range recipients {
		require.NoError(t, h.db.Create(&scheduledomain.ScheduleRecipient{
			ScheduleID: sched.ID,
			EmployeeID: empID,
		}).Error)
	}
	return sched
}

func (h *harness) fundEscrow(t *testing.T, authorizedCents int64) {
	t.Helper()
	now := h.clock.Now()
	fee, _ := escrowdomain.SplitFee(authorizedCents)
	deposit := &escrowdomain.EscrowDeposit{
		ID:              h.node.Generate(),
		BusinessID:      h.businessID,
		Reference:       fmt.Sprintf("dep-%s", strings.ToLower(h.node.Generate().Base36())),
		AmountCents:     authorizedCents + fee,
		FeeCents:        fee,
		AuthorizedCents: authorizedCents,
		Currency:        "ZAR",
		Status:          escrowdomain.DepositStatusCompleted,
		CompletedAt:     &now,
	}
	require.NoError(t, h.db.Create(deposit).Error)
}

func (h *harness) balance(t *testing.T) int64 {
	t.Helper()
	balance, err := h.escrowRepo.AvailableBalance(context.Background(), h.db, h.businessID)
	require.NoError(t, err)
	return balance
}

func (h *harness) jobs(t *testing.T, scheduleID snowflake.ID) []*jobdomain.Job {
	t.Helper()
	var jobs []*jobdomain.Job
	require.NoError(t, h.db.Where("schedule_id = ?", scheduleID).Order("id").Find(&jobs).Error)
	return jobs
}

func (h *harness) reloadSchedule(t *testing.T, id snowflake.ID) *scheduledomain.Schedule {
	t.Helper()
	var sched scheduledomain.Schedule
	require.NoError(t, h.db.First(&sched, "id = ?", id).Error)
	return &sched
}

func TestDispatcher_DispatchJob_PaysDueScheduleAndAdvances(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	emp := h.createEmployee(t, 0)
	amount := int64(25_000)
	sched := h.createSchedule(t, scheduledomain.KindGeneric, &amount, start, recurrence.FrequencyMonthly, emp.ID)
	h.fundEscrow(t, 100_000)

	require.NoError(t, h.disp.DispatchJob(context.Background()))

	jobs := h.jobs(t, sched.ID)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, jobdomain.JobStatusSucceeded, job.Status)
	assert.Equal(t, amount, job.AmountCents)
	assert.Equal(t, emp.ID, job.EmployeeID)
	require.NotNil(t, job.ReservationToken)
	assert.NotNil(t, job.ProcessedAt)

	// Monthly pay period is the calendar month of the occurrence.
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), job.PeriodStart.UTC())
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), job.PeriodEnd.UTC())

	reloaded := h.reloadSchedule(t, sched.ID)
	require.NotNil(t, reloaded.NextRunAt)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), reloaded.NextRunAt.UTC())
	require.NotNil(t, reloaded.LastRunAt)
	assert.Equal(t, start, reloaded.LastRunAt.UTC())

	assert.Equal(t, int64(75_000), h.balance(t))
	assert.Equal(t, 1, h.executor.requestCount())
	assert.Contains(t, h.audit.actions(), "schedule.dispatched")
	assert.Contains(t, h.audit.actions(), "job.succeeded")

	// Not due again until March: a second tick is a no-op.
	require.NoError(t, h.disp.DispatchJob(context.Background()))
	assert.Len(t, h.jobs(t, sched.ID), 1)
	assert.Equal(t, 1, h.executor.requestCount())
}

func TestDispatcher_DispatchJob_DuplicateOccurrenceSkipped(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	emp := h.createEmployee(t, 0)
	amount := int64(10_000)
	sched := h.createSchedule(t, scheduledomain.KindGeneric, &amount, start, recurrence.FrequencyMonthly, emp.ID)
	h.fundEscrow(t, 50_000)

	require.NoError(t, h.disp.DispatchJob(context.Background()))
	require.Len(t, h.jobs(t, sched.ID), 1)

	// Rewind the schedule as if a crashed instance never advanced it.
	// Replaying the occurrence must hit the uniqueness index, not pay
	// twice.
	require.NoError(t, h.db.Exec(
		`UPDATE schedules SET next_run_at = ? WHERE id = ?`, start, sched.ID,
	).Error)

	require.NoError(t, h.disp.DispatchJob(context.Background()))

	assert.Len(t, h.jobs(t, sched.ID), 1)
	assert.Equal(t, 1, h.executor.requestCount())
	assert.Equal(t, int64(40_000), h.balance(t))

	reloaded := h.reloadSchedule(t, sched.ID)
	require.NotNil(t, reloaded.NextRunAt)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), reloaded.NextRunAt.UTC())
}

func TestDispatcher_DispatchJob_InsufficientFunds(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	emp := h.createEmployee(t, 0)
	amount := int64(5_000)
	sched := h.createSchedule(t, scheduledomain.KindGeneric, &amount, start, recurrence.FrequencyMonthly, emp.ID)
	h.fundEscrow(t, 3_000)

	require.NoError(t, h.disp.DispatchJob(context.Background()))

	jobs := h.jobs(t, sched.ID)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, jobdomain.JobStatusFailed, job.Status)
	require.NotNil(t, job.FailureReason)
	assert.Equal(t, escrowdomain.ErrInsufficientFunds.Error(), *job.FailureReason)
	assert.Nil(t, job.ReservationToken)

	// Nothing was reserved, nothing reached the rail, balance intact.
	assert.Equal(t, int64(3_000), h.balance(t))
	assert.Equal(t, 0, h.executor.requestCount())

	events := h.notifier.byType(notify.EventInsufficientFunds)
	require.Len(t, events, 1)
	assert.Equal(t, job.ID, events[0].JobID)
	assert.Contains(t, h.audit.actions(), "job.funding_failed")

	// The failed occurrence does not wedge the schedule.
	reloaded := h.reloadSchedule(t, sched.ID)
	require.NotNil(t, reloaded.NextRunAt)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), reloaded.NextRunAt.UTC())
}

func TestDispatcher_DispatchJob_RailFailureReleasesFunds(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	emp := h.createEmployee(t, 0)
	amount := int64(25_000)
	sched := h.createSchedule(t, scheduledomain.KindGeneric, &amount, start, recurrence.FrequencyMonthly, emp.ID)
	h.fundEscrow(t, 100_000)
	h.executor.failWith = raildomain.ErrExecutionFailed

	require.NoError(t, h.disp.DispatchJob(context.Background()))

	jobs := h.jobs(t, sched.ID)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, jobdomain.JobStatusFailed, job.Status)
	require.NotNil(t, job.FailureReason)
	assert.Equal(t, raildomain.ErrExecutionFailed.Error(), *job.FailureReason)

	// Released reservation: the full balance is spendable again.
	assert.Equal(t, int64(100_000), h.balance(t))

	events := h.notifier.byType(notify.EventRailFailure)
	require.Len(t, events, 1)
	assert.Contains(t, h.audit.actions(), "job.failed")

	reloaded := h.reloadSchedule(t, sched.ID)
	require.NotNil(t, reloaded.NextRunAt)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), reloaded.NextRunAt.UTC())
}

func TestDispatcher_DispatchJob_PayrollPaysNetPlusAdjustments(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	emp := h.createEmployee(t, 2_000_000)
	h.tax.netCents = 1_600_000
	h.adjust.resolution = adjustmentdomain.Resolution{
		Additions:  []adjustmentdomain.ResolvedAdjustment{{Cents: 50_000}},
		Deductions: []adjustmentdomain.ResolvedAdjustment{{Cents: 20_000}},
	}
	sched := h.createSchedule(t, scheduledomain.KindPayroll, nil, start, recurrence.FrequencyMonthly, emp.ID)
	h.fundEscrow(t, 2_000_000)

	require.NoError(t, h.disp.DispatchJob(context.Background()))

	jobs := h.jobs(t, sched.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobdomain.JobStatusSucceeded, jobs[0].Status)
	assert.Equal(t, int64(1_630_000), jobs[0].AmountCents)
	assert.Equal(t, int64(370_000), h.balance(t))
}

func TestDispatcher_DispatchJob_SkipsTerminatedRecipients(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	active := h.createEmployee(t, 0)
	terminated := h.createEmployee(t, 0)
	require.NoError(t, h.db.Model(&employeedomain.Employee{}).
		Where("id = ?", terminated.ID).
		Update("status", employeedomain.EmployeeStatusTerminated).Error)

	amount := int64(10_000)
	sched := h.createSchedule(t, scheduledomain.KindGeneric, &amount, start, recurrence.FrequencyMonthly, active.ID, terminated.ID)
	h.fundEscrow(t, 50_000)

	require.NoError(t, h.disp.DispatchJob(context.Background()))

	jobs := h.jobs(t, sched.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, active.ID, jobs[0].EmployeeID)
}

func TestDispatcher_DispatchJob_PausedSchedulesNeverSelected(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	emp := h.createEmployee(t, 0)
	amount := int64(10_000)
	sched := h.createSchedule(t, scheduledomain.KindGeneric, &amount, start, recurrence.FrequencyMonthly, emp.ID)
	h.fundEscrow(t, 50_000)
	require.NoError(t, h.db.Model(&scheduledomain.Schedule{}).
		Where("id = ?", sched.ID).
		Update("status", scheduledomain.StatusPaused).Error)

	h.clock.Advance(48 * time.Hour)
	require.NoError(t, h.disp.DispatchJob(context.Background()))

	assert.Empty(t, h.jobs(t, sched.ID))
	assert.Equal(t, 0, h.executor.requestCount())
}

func TestDispatcher_RecoverySweep_ReleasesStaleReservations(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	emp := h.createEmployee(t, 0)
	h.fundEscrow(t, 50_000)

	// A reservation abandoned an hour ago by a dead worker.
	token := "stale-token"
	stuckAt := start.Add(-time.Hour)
	require.NoError(t, h.db.Exec(
		`INSERT INTO jobs (id, business_id, schedule_id, employee_id, period_start, period_end,
		                   amount_cents, status, reservation_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.node.Generate(), h.businessID, h.node.Generate(), emp.ID,
		start.AddDate(0, -1, 0), start.AddDate(0, 0, -1),
		int64(20_000), jobdomain.JobStatusProcessing, token, stuckAt, stuckAt,
	).Error)

	assert.Equal(t, int64(30_000), h.balance(t))

	require.NoError(t, h.disp.RecoverySweepJob(context.Background()))

	var job jobdomain.Job
	require.NoError(t, h.db.First(&job, "reservation_token = ?", token).Error)
	assert.Equal(t, jobdomain.JobStatusFailed, job.Status)
	require.NotNil(t, job.FailureReason)
	assert.Equal(t, staleReservationReason, *job.FailureReason)

	assert.Equal(t, int64(50_000), h.balance(t))
	assert.Contains(t, h.audit.actions(), "job.recovered")
}

func TestDispatcher_RecoverySweep_FailsTokenlessProcessingJob(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	emp := h.createEmployee(t, 0)
	h.fundEscrow(t, 50_000)

	// Processing with no reservation token: nothing to release, but the
	// row must still move to failed instead of being re-listed forever.
	jobID := h.node.Generate()
	stuckAt := start.Add(-time.Hour)
	require.NoError(t, h.db.Exec(
		`INSERT INTO jobs (id, business_id, schedule_id, employee_id, period_start, period_end,
		                   amount_cents, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID, h.businessID, h.node.Generate(), emp.ID,
		start.AddDate(0, -1, 0), start.AddDate(0, 0, -1),
		int64(20_000), jobdomain.JobStatusProcessing, stuckAt, stuckAt,
	).Error)

	assert.Equal(t, int64(30_000), h.balance(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.disp.RecoverySweepJob(ctx))

	var job jobdomain.Job
	require.NoError(t, h.db.First(&job, "id = ?", jobID).Error)
	assert.Equal(t, jobdomain.JobStatusFailed, job.Status)
	require.NotNil(t, job.FailureReason)
	assert.Equal(t, staleReservationReason, *job.FailureReason)

	// Failed jobs hold nothing.
	assert.Equal(t, int64(50_000), h.balance(t))

	// A second sweep finds nothing left to recover.
	require.NoError(t, h.disp.RecoverySweepJob(ctx))
}

func TestDispatcher_RunForever_TicksWithFakeClock(t *testing.T) {
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, start)

	emp := h.createEmployee(t, 0)
	amount := int64(10_000)
	sched := h.createSchedule(t, scheduledomain.KindGeneric, &amount, start, recurrence.FrequencyMonthly, emp.ID)
	h.fundEscrow(t, 100_000)

	// Drive three months of occurrences through RunOnce, advancing the
	// fake clock a day at a time the way the production ticker would.
	ctx := context.Background()
	target := start.AddDate(0, 3, 1)
	for h.clock.Now().Before(target) {
		require.NoError(t, h.disp.RunOnce(ctx))
		h.clock.Advance(24 * time.Hour)
	}

	jobs := h.jobs(t, sched.ID)
	require.Len(t, jobs, 4)
	for _, job := range jobs {
		assert.Equal(t, jobdomain.JobStatusSucceeded, job.Status)
	}
	assert.Equal(t, int64(60_000), h.balance(t))
}
