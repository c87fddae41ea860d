package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/paygrid/disburse/internal/audit/domain"
	"github.com/paygrid/disburse/internal/authorization"
	jobdomain "github.com/paygrid/disburse/internal/job/domain"
	obsmetrics "github.com/paygrid/disburse/internal/observability/metrics"
)

const staleReservationReason = "stale_reservation_recovered"

// RecoverySweepJob releases reservations held by jobs stuck in
// processing past the recovery threshold. A job gets stuck when the
// process died between reserve and commit; releasing marks it failed
// and returns the funds, so the money never leaks. The rail call for
// such a job may or may not have landed; the sweep surfaces it for
// manual reconciliation instead of guessing.
func (d *Dispatcher) RecoverySweepJob(ctx context.Context) error {
	ctx, run, owner := d.ensureTickRun(ctx, "recovery_sweep", d.cfg.BatchSize)
	if owner {
		d.logTickStart(run)
		defer d.logTickFinish(run)
	}
	now := d.clock.Now()
	cutoff := now.Add(-d.cfg.RecoveryThreshold)
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		stuck, err := d.jobRepo.ListStuckProcessing(ctx, d.db, cutoff, d.cfg.BatchSize)
		if err != nil {
			d.logDispatchError(run, "dispatcher.recovery.list.failed", "recovery_sweep", 0, err)
			return errors.Join(jobErr, err)
		}
		if len(stuck) == 0 {
			break
		}

		recovered := 0
		for _, job := range stuck {
			if err := d.authorizeSystem(ctx, job.BusinessID, authorization.ObjectJob, authorization.ActionJobRecover); err != nil {
				jobErr = errors.Join(jobErr, err)
				d.logDispatchError(run, "dispatcher.authorize.failed", "recovery_sweep", job.BusinessID, err,
					zap.String("job_id", idString(job.ID)),
				)
				continue
			}
			if job.ReservationToken == nil {
				// Processing without a token should not happen; record
				// the failure directly rather than leave the row wedged.
				marked, err := d.markJobFailed(ctx, d.db, job.ID, jobdomain.JobStatusProcessing, staleReservationReason, now)
				if err == nil && !marked {
					err = fmt.Errorf("job %s: no longer processing, skipped", idString(job.ID))
				}
				if err != nil {
					jobErr = errors.Join(jobErr, err)
					d.logDispatchError(run, "dispatcher.recovery.mark.failed", "recovery_sweep", job.BusinessID, err,
						zap.String("job_id", idString(job.ID)),
					)
					continue
				}
				recovered++
				run.AddProcessed(1)
				obsmetrics.Dispatcher().IncJobProcessed("recovery", "failed")
				continue
			}

			token := *job.ReservationToken
			releaseErr := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return d.ledger.Release(ctx, tx, token, staleReservationReason)
			})
			if releaseErr != nil {
				jobErr = errors.Join(jobErr, releaseErr)
				d.logDispatchError(run, "dispatcher.recovery.release.failed", "recovery_sweep", job.BusinessID, releaseErr,
					zap.String("job_id", idString(job.ID)),
				)
				continue
			}

			recovered++
			run.AddProcessed(1)
			obsmetrics.Dispatcher().IncJobProcessed("recovery", "released")
			d.log.Warn("released stale reservation",
				zap.String("job_id", idString(job.ID)),
				zap.String("business_id", idString(job.BusinessID)),
				zap.Int64("amount_cents", job.AmountCents),
				zap.Duration("held_for", now.Sub(job.UpdatedAt)),
			)
			d.emitAudit(ctx, auditdomain.Entry{
				BusinessID: &job.BusinessID,
				ActorType:  string(auditdomain.ActorTypeSystem),
				Action:     "job.recovered",
				TargetType: "job",
				TargetID:   targetID(job.ID),
				Metadata: map[string]any{
					"schedule_id":  idString(job.ScheduleID),
					"amount_cents": job.AmountCents,
					"reason":       staleReservationReason,
				},
			})
		}

		// A pass that moved nothing will not move anything next time
		// either; bail out instead of re-listing the same rows.
		if recovered == 0 {
			break
		}
	}

	return jobErr
}
