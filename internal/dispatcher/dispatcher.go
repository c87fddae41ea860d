package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	adjustmentdomain "github.com/paygrid/disburse/internal/adjustment/domain"
	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	"github.com/paygrid/disburse/internal/auditctx"
	"github.com/paygrid/disburse/internal/authorization"
	"github.com/paygrid/disburse/internal/clock"
	employeedomain "github.com/paygrid/disburse/internal/employee/domain"
	escrowdomain "github.com/paygrid/disburse/internal/escrow/domain"
	jobdomain "github.com/paygrid/disburse/internal/job/domain"
	"github.com/paygrid/disburse/internal/notify"
	obsmetrics "github.com/paygrid/disburse/internal/observability/metrics"
	raildomain "github.com/paygrid/disburse/internal/rail/domain"
	"github.com/paygrid/disburse/internal/recurrence"
	scheduledomain "github.com/paygrid/disburse/internal/schedule/domain"
	taxdomain "github.com/paygrid/disburse/internal/tax/domain"
	"github.com/paygrid/disburse/internal/tenantctx"
)

var ErrInvalidConfig = errors.New("invalid_dispatcher_config")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	ScheduleRepo  scheduledomain.Repository
	EmployeeRepo  employeedomain.Repository
	JobRepo       jobdomain.Repository
	TaxSvc        taxdomain.Service
	AdjustmentSvc adjustmentdomain.Service
	Ledger        escrowdomain.Ledger
	Executor      raildomain.Executor
	AuditSvc      auditdomain.Service
	AuthzSvc      authorization.Service
	Notifier      notify.Notifier
	Locker        *Locker `optional:"true"`
	Config        Config  `optional:"true"`
}

// Dispatcher turns due schedules into disbursement jobs and drives
// each job through reserve, rail execution and commit or release.
type Dispatcher struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	scheduleRepo  scheduledomain.Repository
	employeeRepo  employeedomain.Repository
	jobRepo       jobdomain.Repository
	taxSvc        taxdomain.Service
	adjustmentSvc adjustmentdomain.Service
	ledger        escrowdomain.Ledger
	executor      raildomain.Executor
	auditSvc      auditdomain.Service
	authzSvc      authorization.Service
	notifier      notify.Notifier
	locker        *Locker
}

func New(p Params) (*Dispatcher, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil ||
		p.ScheduleRepo == nil || p.EmployeeRepo == nil || p.JobRepo == nil ||
		p.TaxSvc == nil || p.AdjustmentSvc == nil || p.Ledger == nil ||
		p.Executor == nil || p.AuditSvc == nil || p.AuthzSvc == nil {
		return nil, ErrInvalidConfig
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = &notify.NoOpNotifier{}
	}
	return &Dispatcher{
		db:            p.DB,
		log:           p.Log.Named("dispatcher").With(zap.String("component", "dispatcher")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		scheduleRepo:  p.ScheduleRepo,
		employeeRepo:  p.EmployeeRepo,
		jobRepo:       p.JobRepo,
		taxSvc:        p.TaxSvc,
		adjustmentSvc: p.AdjustmentSvc,
		ledger:        p.Ledger,
		executor:      p.Executor,
		auditSvc:      p.AuditSvc,
		authzSvc:      p.AuthzSvc,
		notifier:      notifier,
		locker:        p.Locker,
	}, nil
}

func (d *Dispatcher) runTick(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := d.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditctx.WithActor(ctx, string(auditdomain.ActorTypeSystem), "dispatcher")
	ctx, run, owner := d.ensureTickRun(ctx, name, batchSize)
	if owner {
		d.logTickStart(run)
	}
	dispMetrics := obsmetrics.Dispatcher()
	dispMetrics.IncTickRun(name)

	err := fn(ctx)
	dispMetrics.ObserveTickDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		d.logTickFinish(run)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		d.log.Warn("tick timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (d *Dispatcher) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"dispatch", d.isJobEnabled("dispatch"), func(ctx context.Context) error {
			return d.runTick(ctx, "dispatch", d.cfg.BatchSize, 5*time.Minute, d.DispatchJob)
		}},
		{"recovery_sweep", d.isJobEnabled("recovery_sweep"), func(ctx context.Context) error {
			return d.runTick(ctx, "recovery_sweep", d.cfg.BatchSize, time.Minute, d.RecoverySweepJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (d *Dispatcher) RunForever(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if err := d.runElected(ctx); err != nil {
			d.log.Warn("dispatcher run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runElected wraps RunOnce with the optional redis leader lock so a
// horizontally scaled deployment runs one dispatcher per tick. Without
// redis every replica dispatches and the jobs uniqueness index absorbs
// the overlap.
func (d *Dispatcher) runElected(ctx context.Context) error {
	if d.locker == nil {
		return d.RunOnce(ctx)
	}

	token, ok, err := d.locker.TryLock(ctx, leaderLockKey, d.cfg.LeaderLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		d.log.Debug("dispatcher tick skipped, another instance holds the leader lock")
		return nil
	}
	defer func() {
		if releaseErr := d.locker.Release(ctx, leaderLockKey, token); releaseErr != nil {
			d.log.Warn("failed to release leader lock", zap.Error(releaseErr))
		}
	}()

	return d.RunOnce(ctx)
}

func (d *Dispatcher) isJobEnabled(jobName string) bool {
	if len(d.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range d.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// workItem is one planned payment: the recipient plus the resolved
// amount for the occurrence.
type workItem struct {
	Employee    *employeedomain.Employee
	AmountCents int64
}

// createdJob pairs an inserted job row with the item it pays so the
// rail call has the bank details without a re-read.
type createdJob struct {
	Job  *jobdomain.Job
	Item workItem
}

func (d *Dispatcher) DispatchJob(ctx context.Context) error {
	ctx, run, owner := d.ensureTickRun(ctx, "dispatch", d.cfg.BatchSize)
	if owner {
		d.logTickStart(run)
		defer d.logTickFinish(run)
	}
	now := d.clock.Now()
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		processed, batchErr := d.dispatchBatch(ctx, now, run)
		if batchErr != nil {
			jobErr = errors.Join(jobErr, batchErr)
		}
		run.AddProcessed(processed)
		if processed == 0 {
			break
		}
	}

	return jobErr
}

func (d *Dispatcher) dispatchBatch(ctx context.Context, now time.Time, run *tickRun) (int, error) {
	var batchErr error

	// Claim due schedules in a short transaction; processing happens in
	// per-schedule transactions afterwards.
	var schedules []WorkSchedule
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var err error
		schedules, err = d.fetchDueSchedules(ctx, tx, now, d.cfg.BatchSize)
		return err
	})
	if err != nil {
		d.logDispatchError(run, "dispatcher.claim.failed", "dispatch", 0, err)
		return 0, err
	}
	if len(schedules) == 0 {
		return 0, nil
	}

	processed := 0
	for _, sched := range schedules {
		if ctx.Err() != nil {
			batchErr = errors.Join(batchErr, ctx.Err())
			break
		}

		d.logScheduleClaimed("dispatch", sched)
		if err := d.authorizeSystem(ctx, sched.BusinessID, authorization.ObjectJob, authorization.ActionJobDispatch); err != nil {
			batchErr = errors.Join(batchErr, err)
			d.logDispatchError(run, "dispatcher.authorize.failed", "dispatch", sched.BusinessID, err,
				zap.String("schedule_id", idString(sched.ID)),
			)
			continue
		}

		if err := d.processSchedule(ctx, sched, now, run); err != nil {
			batchErr = errors.Join(batchErr, err)
			continue
		}
		processed++
	}

	return processed, batchErr
}

// processSchedule materializes one due occurrence: resolve amounts,
// insert jobs idempotently and advance next_run_at in the same
// transaction, then push the created jobs through the rail.
func (d *Dispatcher) processSchedule(ctx context.Context, sched WorkSchedule, now time.Time, run *tickRun) error {
	if sched.NextRunAt == nil {
		return nil
	}
	runAt := sched.NextRunAt.UTC()

	desc, err := recurrence.Parse(sched.Spec)
	if err != nil {
		d.logDispatchError(run, "dispatcher.schedule.process.failed", "dispatch", sched.BusinessID, err,
			zap.String("schedule_id", idString(sched.ID)),
		)
		return err
	}
	period := recurrence.PayPeriod(desc, runAt)

	schedCtx := tenantctx.WithBusinessID(ctx, sched.BusinessID)
	schedCtx = auditctx.WithScheduleRunID(schedCtx, run.runID)

	items, err := d.resolveItems(schedCtx, sched, period)
	if err != nil {
		d.logDispatchError(run, "dispatcher.schedule.resolve.failed", "dispatch", sched.BusinessID, err,
			zap.String("schedule_id", idString(sched.ID)),
		)
		return err
	}

	var nextRunAt *time.Time
	if next, ok := recurrence.NextRun(desc, runAt); ok {
		nextRunAt = &next
	}

	dispMetrics := obsmetrics.Dispatcher()
	var created []createdJob
	txErr := d.db.WithContext(schedCtx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			job := &jobdomain.Job{
				ID:          d.genID.Generate(),
				BusinessID:  sched.BusinessID,
				ScheduleID:  sched.ID,
				EmployeeID:  item.Employee.ID,
				PeriodStart: period.Start,
				PeriodEnd:   period.End,
				AmountCents: item.AmountCents,
				Status:      jobdomain.JobStatusPending,
			}
			if err := d.jobRepo.Insert(schedCtx, tx, job); err != nil {
				if errors.Is(err, jobdomain.ErrDuplicateExecution) {
					dispMetrics.IncDuplicateSkip()
					d.log.Debug("occurrence already executed, skipping",
						zap.String("schedule_id", idString(sched.ID)),
						zap.String("employee_id", idString(item.Employee.ID)),
						zap.Time("period_start", period.Start),
					)
					continue
				}
				return err
			}
			created = append(created, createdJob{Job: job, Item: item})
		}

		// Advance even when every insert was a duplicate: this
		// occurrence is done either way, and a failed run is retried on
		// the schedule's next occurrence, not by replaying this one.
		advanced, err := d.advanceScheduleTx(schedCtx, tx, sched.ID, runAt, nextRunAt, now)
		if err != nil {
			return err
		}
		if !advanced {
			// The schedule was paused, cancelled or advanced by a
			// concurrent tick after we claimed it. Roll the jobs back;
			// the winner owns the occurrence.
			return scheduledomain.ErrInvalidTransition
		}
		return nil
	})
	if txErr != nil {
		d.logDispatchError(run, "dispatcher.schedule.process.failed", "dispatch", sched.BusinessID, txErr,
			zap.String("schedule_id", idString(sched.ID)),
		)
		return txErr
	}

	d.emitAudit(schedCtx, auditdomain.Entry{
		BusinessID: &sched.BusinessID,
		ActorType:  string(auditdomain.ActorTypeSystem),
		Action:     "schedule.dispatched",
		TargetType: "schedule",
		TargetID:   targetID(sched.ID),
		Metadata: map[string]any{
			"run_id":       run.runID,
			"ran_at":       runAt.Format(time.RFC3339),
			"period_start": period.Start.Format(time.RFC3339),
			"period_end":   period.End.Format(time.RFC3339),
			"jobs_created": len(created),
		},
	})

	d.executeCreated(schedCtx, sched, created, run)
	return nil
}

// resolveItems computes the per-recipient amounts for one occurrence.
// Payroll schedules pay each employee their net salary after tax plus
// adjustments; generic schedules pay the base amount plus adjustments,
// with percentages resolving against the base.
func (d *Dispatcher) resolveItems(ctx context.Context, sched WorkSchedule, period recurrence.Period) ([]workItem, error) {
	recipientIDs, err := d.scheduleRepo.ListRecipients(ctx, d.db, sched.ID)
	if err != nil {
		return nil, err
	}
	if len(recipientIDs) == 0 {
		return nil, scheduledomain.ErrNoRecipients
	}
	employees, err := d.employeeRepo.FindByIDs(ctx, d.db, sched.BusinessID, recipientIDs)
	if err != nil {
		return nil, err
	}

	items := make([]workItem, 0, len(employees))
	for _, emp := range employees {
		if emp.Status != employeedomain.EmployeeStatusActive {
			d.log.Info("skipping terminated recipient",
				zap.String("schedule_id", idString(sched.ID)),
				zap.String("employee_id", idString(emp.ID)),
			)
			continue
		}

		amount, err := d.resolveAmount(ctx, sched, emp, period)
		if err != nil {
			return nil, err
		}
		if amount <= 0 {
			d.log.Warn("resolved amount is not positive, skipping recipient",
				zap.String("schedule_id", idString(sched.ID)),
				zap.String("employee_id", idString(emp.ID)),
				zap.Int64("amount_cents", amount),
			)
			obsmetrics.Dispatcher().IncJobProcessed(string(sched.Kind), "skipped")
			continue
		}
		items = append(items, workItem{Employee: emp, AmountCents: amount})
	}
	return items, nil
}

func (d *Dispatcher) resolveAmount(ctx context.Context, sched WorkSchedule, emp *employeedomain.Employee, period recurrence.Period) (int64, error) {
	empID := emp.ID

	if sched.Kind == scheduledomain.KindPayroll {
		breakdown, err := d.taxSvc.Calculate(ctx, emp.GrossSalaryCents)
		if err != nil {
			return 0, err
		}
		resolution, err := d.adjustmentSvc.ResolveForPeriod(ctx, &empID, period, emp.GrossSalaryCents)
		if err != nil {
			return 0, err
		}
		return breakdown.NetCents + resolution.NetCents(), nil
	}

	if sched.AmountCents == nil {
		return 0, scheduledomain.ErrInvalidAmount
	}
	base := *sched.AmountCents
	resolution, err := d.adjustmentSvc.ResolveForPeriod(ctx, &empID, period, base)
	if err != nil {
		return 0, err
	}
	return base + resolution.NetCents(), nil
}

// executeCreated drives freshly created jobs through the escrow ledger
// and the rail. Failures here never unwind the occurrence: the jobs
// exist, carry their failure reason and surface through the notifier.
func (d *Dispatcher) executeCreated(ctx context.Context, sched WorkSchedule, created []createdJob, run *tickRun) {
	if len(created) == 0 {
		return
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.cfg.Workers)
	for _, cj := range created {
		cj := cj
		group.Go(func() error {
			d.executeJob(groupCtx, sched, cj, run)
			return nil
		})
	}
	_ = group.Wait()
}

func (d *Dispatcher) executeJob(ctx context.Context, sched WorkSchedule, cj createdJob, run *tickRun) {
	job := cj.Job
	now := d.clock.Now()
	dispMetrics := obsmetrics.Dispatcher()

	var token string
	reserveErr := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		token, err = d.ledger.Reserve(ctx, tx, job.BusinessID, job.ID, job.AmountCents)
		return err
	})
	if reserveErr != nil {
		if errors.Is(reserveErr, escrowdomain.ErrInsufficientFunds) {
			d.failUnfunded(ctx, sched, job, now)
			return
		}
		d.logDispatchError(run, "dispatcher.reserve.failed", "dispatch", job.BusinessID, reserveErr,
			zap.String("job_id", idString(job.ID)),
		)
		return
	}

	result, execErr := d.executeOnRail(ctx, sched, cj)
	if execErr != nil {
		d.releaseFailed(ctx, sched, job, token, execErr, run)
		return
	}

	commitErr := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return d.ledger.Commit(ctx, tx, token)
	})
	if commitErr != nil {
		d.logDispatchError(run, "dispatcher.commit.failed", "dispatch", job.BusinessID, commitErr,
			zap.String("job_id", idString(job.ID)),
		)
		return
	}

	dispMetrics.IncJobProcessed(string(sched.Kind), "succeeded")
	d.emitAudit(ctx, auditdomain.Entry{
		BusinessID: &job.BusinessID,
		ActorType:  string(auditdomain.ActorTypeSystem),
		Action:     "job.succeeded",
		TargetType: "job",
		TargetID:   targetID(job.ID),
		Metadata: map[string]any{
			"schedule_id":  idString(job.ScheduleID),
			"employee_id":  idString(job.EmployeeID),
			"amount_cents": job.AmountCents,
			"provider_ref": result.ProviderRef,
		},
	})
}

// executeOnRail calls the payment rail with a bounded deadline so a
// hung provider cannot pin reserved funds past the tick.
func (d *Dispatcher) executeOnRail(ctx context.Context, sched WorkSchedule, cj createdJob) (raildomain.ExecutionResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, d.cfg.ExecutionTimeout)
	defer cancel()

	return d.executor.Execute(execCtx, raildomain.ExecutionRequest{
		JobID:           cj.Job.ID,
		BusinessID:      cj.Job.BusinessID,
		Reference:       fmt.Sprintf("%s-%s", sched.Reference, strings.ToLower(cj.Job.ID.Base36())),
		AmountCents:     cj.Job.AmountCents,
		Currency:        sched.Currency,
		BankAccount:     cj.Item.Employee.BankAccount,
		BankCode:        cj.Item.Employee.BankCode,
		BeneficiaryName: cj.Item.Employee.FullName(),
	})
}

func (d *Dispatcher) failUnfunded(ctx context.Context, sched WorkSchedule, job *jobdomain.Job, now time.Time) {
	dispMetrics := obsmetrics.Dispatcher()
	dispMetrics.IncFundingFailure()
	dispMetrics.IncJobProcessed(string(sched.Kind), "failed")

	marked, err := d.markJobFailed(ctx, d.db, job.ID, jobdomain.JobStatusPending, escrowdomain.ErrInsufficientFunds.Error(), now)
	if err != nil {
		d.log.Error("failed to record funding failure",
			zap.String("job_id", idString(job.ID)),
			zap.Error(err),
		)
	}
	if !marked {
		return
	}

	d.emitAudit(ctx, auditdomain.Entry{
		BusinessID: &job.BusinessID,
		ActorType:  string(auditdomain.ActorTypeSystem),
		Action:     "job.funding_failed",
		TargetType: "job",
		TargetID:   targetID(job.ID),
		Metadata: map[string]any{
			"schedule_id":  idString(job.ScheduleID),
			"employee_id":  idString(job.EmployeeID),
			"amount_cents": job.AmountCents,
		},
	})
	d.notify(ctx, notify.Event{
		Type:       notify.EventInsufficientFunds,
		BusinessID: job.BusinessID,
		ScheduleID: job.ScheduleID,
		JobID:      job.ID,
		Message:    fmt.Sprintf("insufficient escrow funds for %d cents", job.AmountCents),
		OccurredAt: now,
	})
}

func (d *Dispatcher) releaseFailed(ctx context.Context, sched WorkSchedule, job *jobdomain.Job, token string, execErr error, run *tickRun) {
	dispMetrics := obsmetrics.Dispatcher()
	dispMetrics.IncRailFailure()
	dispMetrics.IncJobProcessed(string(sched.Kind), "failed")

	releaseErr := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return d.ledger.Release(ctx, tx, token, execErr.Error())
	})
	if releaseErr != nil {
		d.logDispatchError(run, "dispatcher.release.failed", "dispatch", job.BusinessID, releaseErr,
			zap.String("job_id", idString(job.ID)),
		)
		return
	}

	d.emitAudit(ctx, auditdomain.Entry{
		BusinessID: &job.BusinessID,
		ActorType:  string(auditdomain.ActorTypeSystem),
		Action:     "job.failed",
		TargetType: "job",
		TargetID:   targetID(job.ID),
		Metadata: map[string]any{
			"schedule_id":  idString(job.ScheduleID),
			"employee_id":  idString(job.EmployeeID),
			"amount_cents": job.AmountCents,
			"error":        execErr.Error(),
		},
	})
	d.notify(ctx, notify.Event{
		Type:       notify.EventRailFailure,
		BusinessID: job.BusinessID,
		ScheduleID: job.ScheduleID,
		JobID:      job.ID,
		Message:    execErr.Error(),
		OccurredAt: d.clock.Now(),
	})
}

func (d *Dispatcher) emitAudit(ctx context.Context, entry auditdomain.Entry) {
	if d.auditSvc == nil {
		return
	}
	if err := d.auditSvc.Record(ctx, entry); err != nil {
		d.log.Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) notify(ctx context.Context, event notify.Event) {
	if err := d.notifier.Notify(ctx, event); err != nil {
		d.log.Warn("notification failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) authorizeSystem(ctx context.Context, businessID snowflake.ID, object, action string) error {
	if d.authzSvc == nil {
		return authorization.ErrForbidden
	}
	return d.authzSvc.Authorize(ctx, "system", businessID.String(), object, action)
}

func targetID(id snowflake.ID) *string {
	s := id.String()
	return &s
}
