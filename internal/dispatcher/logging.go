package dispatcher

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	obsmetrics "github.com/paygrid/disburse/internal/observability/metrics"
)

type tickRun struct {
	job            string
	runID          string
	batchSize      int
	startedAt      time.Time
	processedCount int
	errorCount     int
}

type tickRunKey struct{}

func (r *tickRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *tickRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (d *Dispatcher) ensureTickRun(ctx context.Context, job string, batchSize int) (context.Context, *tickRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := tickRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &tickRun{
		job:       job,
		runID:     d.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, tickRunKey{}, run)
	return ctx, run, true
}

func tickRunFromContext(ctx context.Context) *tickRun {
	if ctx == nil {
		return nil
	}
	if run, ok := ctx.Value(tickRunKey{}).(*tickRun); ok {
		return run
	}
	return nil
}

func (d *Dispatcher) logTickStart(run *tickRun) {
	if run == nil {
		return
	}
	d.log.Info("dispatcher.tick.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (d *Dispatcher) logTickFinish(run *tickRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	if run.errorCount > 0 {
		d.log.Warn("dispatcher.tick.finish", fields...)
		return
	}
	d.log.Info("dispatcher.tick.finish", fields...)
}

func (d *Dispatcher) logDispatchError(run *tickRun, msg string, job string, businessID snowflake.ID, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	if run != nil {
		run.IncError()
	}
	obsmetrics.Dispatcher().IncJobFailure(err.Error())
	baseFields := []zap.Field{
		zap.String("job", job),
		zap.String("business_id", idString(businessID)),
		zap.String("error", err.Error()),
	}
	d.log.Error(msg, append(baseFields, fields...)...)
}

func (d *Dispatcher) logScheduleClaimed(job string, sched WorkSchedule) {
	d.log.Debug("dispatcher.schedule.claimed",
		zap.String("job", job),
		zap.String("schedule_id", idString(sched.ID)),
		zap.String("business_id", idString(sched.BusinessID)),
		zap.String("kind", string(sched.Kind)),
		zap.Timep("next_run_at", sched.NextRunAt),
	)
}

func idString(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
