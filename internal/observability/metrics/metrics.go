package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DispatcherMetrics exposes counters and histograms for the
// disbursement tick.
type DispatcherMetrics struct {
	tickRuns        *prometheus.CounterVec
	tickDuration    *prometheus.HistogramVec
	jobsProcessed   *prometheus.CounterVec
	jobFailures     *prometheus.CounterVec
	fundingFailures prometheus.Counter
	railFailures    prometheus.Counter
	duplicateSkips  prometheus.Counter
	lockWait        *prometheus.HistogramVec
}

var (
	dispatcherOnce sync.Once
	dispatcherInst *DispatcherMetrics
)

// Dispatcher returns the process-wide dispatcher metrics, registering
// them on first use.
func Dispatcher() *DispatcherMetrics {
	dispatcherOnce.Do(func() {
		dispatcherInst = newDispatcherMetrics(prometheus.DefaultRegisterer)
	})
	return dispatcherInst
}

// NewDispatcherMetricsForTest registers dispatcher metrics on an
// isolated registry.
func NewDispatcherMetricsForTest(reg prometheus.Registerer) *DispatcherMetrics {
	return newDispatcherMetrics(reg)
}

func newDispatcherMetrics(reg prometheus.Registerer) *DispatcherMetrics {
	factory := promauto.With(reg)
	return &DispatcherMetrics{
		tickRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "disburse_dispatcher_tick_runs_total",
			Help: "Number of dispatcher tick jobs started.",
		}, []string{"job"}),
		tickDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "disburse_dispatcher_tick_duration_seconds",
			Help:    "Duration of dispatcher tick jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		jobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "disburse_jobs_processed_total",
			Help: "Disbursement jobs processed, by outcome.",
		}, []string{"kind", "outcome"}),
		jobFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "disburse_job_failures_total",
			Help: "Disbursement job failures, by reason class.",
		}, []string{"reason"}),
		fundingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "disburse_funding_failures_total",
			Help: "Reservations rejected for insufficient escrow funds.",
		}),
		railFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "disburse_rail_failures_total",
			Help: "External rail executions that failed or timed out.",
		}),
		duplicateSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "disburse_duplicate_job_skips_total",
			Help: "Job inserts skipped because the occurrence was already executed.",
		}),
		lockWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "disburse_db_lock_wait_seconds",
			Help:    "Time spent acquiring row locks.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"resource"}),
	}
}

func (m *DispatcherMetrics) IncTickRun(job string) {
	if m == nil {
		return
	}
	m.tickRuns.WithLabelValues(job).Inc()
}

func (m *DispatcherMetrics) ObserveTickDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *DispatcherMetrics) IncJobProcessed(kind, outcome string) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(kind, outcome).Inc()
}

func (m *DispatcherMetrics) IncJobFailure(reason string) {
	if m == nil {
		return
	}
	m.jobFailures.WithLabelValues(normalizeReason(reason)).Inc()
}

func (m *DispatcherMetrics) IncFundingFailure() {
	if m == nil {
		return
	}
	m.fundingFailures.Inc()
}

func (m *DispatcherMetrics) IncRailFailure() {
	if m == nil {
		return
	}
	m.railFailures.Inc()
}

func (m *DispatcherMetrics) IncDuplicateSkip() {
	if m == nil {
		return
	}
	m.duplicateSkips.Inc()
}

func (m *DispatcherMetrics) ObserveLockWait(resource string, d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(resource).Observe(d.Seconds())
}

func normalizeReason(reason string) string {
	reason = strings.ToLower(strings.TrimSpace(reason))
	if reason == "" {
		return "unknown"
	}
	return reason
}

const (
	LockResourceSchedulesForWork = "schedules_for_work"
	LockResourceBusinessLedger   = "business_ledger"
)
