package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for maintenance runs.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// MaintenanceMetrics tracks the cron worker's sweeps over stale guest carts
// and delivered outbox rows.
type MaintenanceMetrics struct {
	duration  *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	removed   *prometheus.CounterVec
	failed    *prometheus.CounterVec
	lockSkips prometheus.Counter
}

// NewMaintenanceMetrics registers the maintenance metrics on reg. Without a
// registerer the collector records nothing.
func NewMaintenanceMetrics(reg prometheus.Registerer) *MaintenanceMetrics {
	if reg == nil {
		return &MaintenanceMetrics{}
	}
	m := &MaintenanceMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maintenance_job_duration_seconds",
			Help:    "Wall time of one maintenance job run.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_job_runs_total",
			Help: "Maintenance job runs by outcome (ok, partial, failed).",
		}, []string{"job", "outcome"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_rows_removed_total",
			Help: "Carts soft-deleted or outbox rows purged by maintenance jobs.",
		}, []string{"job"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_rows_failed_total",
			Help: "Rows a maintenance job could not remove.",
		}, []string{"job"}),
		lockSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maintenance_lock_skips_total",
			Help: "Cycles skipped because another replica held the maintenance lock.",
		}),
	}
	reg.MustRegister(m.duration, m.runs, m.removed, m.failed, m.lockSkips)
	return m
}

// ObserveRun records one job run: its duration, how many rows it removed or
// failed on, and the outcome derived from those and runErr.
func (m *MaintenanceMetrics) ObserveRun(job string, took time.Duration, removed, failed int64, runErr error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if removed > 0 {
		m.removed.WithLabelValues(job).Add(float64(removed))
	}
	if failed > 0 {
		m.failed.WithLabelValues(job).Add(float64(failed))
	}
	m.runs.WithLabelValues(job, RunOutcome(removed, failed, runErr)).Inc()
}

// IncLockSkipped counts a cycle that found the lock taken.
func (m *MaintenanceMetrics) IncLockSkipped() {
	if m == nil || m.lockSkips == nil {
		return
	}
	m.lockSkips.Inc()
}

// RunOutcome classifies a run. A run that removed rows but also hit failures
// is partial; one that failed without removing anything is failed.
func RunOutcome(removed, failed int64, runErr error) string {
	switch {
	case runErr == nil && failed == 0:
		return OutcomeOK
	case removed > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
