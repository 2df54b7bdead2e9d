package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/orderengine/pkg/logger"
	"github.com/angelmondragon/orderengine/pkg/metrics"
)

const defaultInterval = time.Hour

// ServiceParams configure the maintenance scheduler.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.MaintenanceMetrics
	Interval time.Duration
}

// Service sweeps stale guest carts and old outbox rows on a fixed cadence.
// Only the replica holding the lock runs a cycle.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.MaintenanceMetrics
	interval time.Duration
	now      func() time.Time
}

// CycleReport sums the sweeps of one cycle.
type CycleReport struct {
	Skipped bool
	Jobs    map[string]Sweep
	Failed  []string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry, _ = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Run sweeps immediately and then every interval until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.cycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "maintenance scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// RunOnce runs a single named job under the lock, for operators draining a
// backlog by hand.
func (s *Service) RunOnce(ctx context.Context, name string) (Sweep, error) {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return Sweep{}, fmt.Errorf("unknown maintenance job %q (known: %v)", name, s.registry.Names())
	}
	var (
		sweep  Sweep
		runErr error
	)
	report, err := s.locked(ctx, func() CycleReport {
		sweep, runErr = s.runJob(ctx, job)
		return CycleReport{}
	})
	if err != nil {
		return Sweep{}, err
	}
	if report.Skipped {
		return Sweep{}, fmt.Errorf("maintenance lock held by another replica")
	}
	return sweep, runErr
}

func (s *Service) cycle(ctx context.Context) {
	report, err := s.runCycle(ctx)
	if err != nil {
		s.logg.Error(ctx, "maintenance cycle failed", err)
		return
	}
	if report.Skipped {
		return
	}
	var removed int64
	for _, sweep := range report.Jobs {
		removed += sweep.Removed
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"rows_removed": removed,
		"failed_jobs":  report.Failed,
	}), "maintenance cycle complete")
}

// runCycle runs every job once. A failing job does not stop the ones after it.
func (s *Service) runCycle(ctx context.Context) (CycleReport, error) {
	return s.locked(ctx, func() CycleReport {
		report := CycleReport{Jobs: map[string]Sweep{}}
		for _, job := range s.registry.Jobs() {
			sweep, err := s.runJob(ctx, job)
			report.Jobs[job.Name()] = sweep
			if err != nil {
				report.Failed = append(report.Failed, job.Name())
			}
		}
		return report
	})
}

func (s *Service) locked(ctx context.Context, fn func() CycleReport) (CycleReport, error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return CycleReport{}, fmt.Errorf("acquire maintenance lock: %w", err)
	}
	if !acquired {
		s.metrics.IncLockSkipped()
		s.logg.Info(ctx, "maintenance lock held by another replica; skipping")
		return CycleReport{Skipped: true}, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release maintenance lock", relErr)
		}
	}()
	return fn(), nil
}

func (s *Service) runJob(ctx context.Context, job Job) (Sweep, error) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	start := s.now()
	sweep, err := job.Run(jobCtx)
	took := s.now().Sub(start)
	s.metrics.ObserveRun(job.Name(), took, sweep.Removed, sweep.Failed, err)

	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms":  took.Milliseconds(),
		"rows_removed": sweep.Removed,
		"rows_failed":  sweep.Failed,
		"outcome":      metrics.RunOutcome(sweep.Removed, sweep.Failed, err),
	})
	if err != nil {
		s.logg.Error(jobCtx, "maintenance job failed", err)
		return sweep, err
	}
	s.logg.Info(jobCtx, "maintenance job finished")
	return sweep, nil
}
