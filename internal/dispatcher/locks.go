package dispatcher

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	jobdomain "github.com/paygrid/disburse/internal/job/domain"
	obsmetrics "github.com/paygrid/disburse/internal/observability/metrics"
	scheduledomain "github.com/paygrid/disburse/internal/schedule/domain"
)

type WorkSchedule struct {
	ID          snowflake.ID
	BusinessID  snowflake.ID
	Kind        scheduledomain.ScheduleKind
	Name        string
	Reference   string
	AmountCents *int64
	Currency    string
	Spec        string
	Status      scheduledomain.ScheduleStatus
	NextRunAt   *time.Time
	LastRunAt   *time.Time
}

// fetchDueSchedules claims due schedules for this tick. SKIP LOCKED
// lets concurrent dispatchers split the backlog instead of serializing
// on the first row; the uniqueness index on jobs keeps the race safe
// regardless.
func (d *Dispatcher) fetchDueSchedules(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]WorkSchedule, error) {
	if limit <= 0 {
		limit = d.cfg.BatchSize
	}
	var schedules []WorkSchedule
	lockStart := time.Now()
	err := tx.WithContext(ctx).Raw(
		`SELECT id, business_id, kind, name, reference, amount_cents, currency,
		        spec, status, next_run_at, last_run_at
		 FROM schedules
		 WHERE status = ?
		   AND next_run_at IS NOT NULL
		   AND next_run_at <= ?
		 ORDER BY next_run_at ASC, id ASC
		 FOR UPDATE SKIP LOCKED
		 LIMIT ?`,
		scheduledomain.StatusActive,
		now,
		limit,
	).Scan(&schedules).Error
	obsmetrics.Dispatcher().ObserveLockWait(obsmetrics.LockResourceSchedulesForWork, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// advanceScheduleTx moves the schedule past the occurrence that was
// just materialized. It runs inside the same transaction as the job
// inserts so a failed commit rolls back both: either the occurrence
// produced jobs and moved on, or neither happened. The WHERE clause
// guards against a concurrent pause or cancel between claim and write.
func (d *Dispatcher) advanceScheduleTx(ctx context.Context, tx *gorm.DB, scheduleID snowflake.ID, ranAt time.Time, nextRunAt *time.Time, now time.Time) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE schedules
		 SET next_run_at = ?,
		     last_run_at = ?,
		     updated_at = ?
		 WHERE id = ?
		   AND status = ?
		   AND next_run_at = ?`,
		nextRunAt,
		ranAt,
		now,
		scheduleID,
		scheduledomain.StatusActive,
		ranAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// markJobFailed records a failure on a job still in the expected
// status. Conditional on that status so it cannot clobber a job a
// concurrent worker already moved forward.
func (d *Dispatcher) markJobFailed(ctx context.Context, db *gorm.DB, jobID snowflake.ID, from jobdomain.JobStatus, reason string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE jobs
		 SET status = ?,
		     failure_reason = ?,
		     updated_at = ?
		 WHERE id = ?
		   AND status = ?`,
		jobdomain.JobStatusFailed,
		reason,
		now,
		jobID,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
