package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// Now is overridable in tests.
	Now func() time.Time
}

// Service runs every registered job once per interval, guarded by a cluster-wide lock
// so that only one worker replica executes a cycle.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      params.Now,
	}
	if s.registry == nil {
		s.registry = &Registry{byName: map[string]Job{}}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run executes a cycle immediately and then on every tick until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.runJobs(ctx, s.registry.Jobs()); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single locked cycle over the named jobs, or every job when
// names is empty. It backs the worker's one-shot mode.
func (s *Service) RunOnce(ctx context.Context, names ...string) error {
	jobs, err := s.registry.Select(names...)
	if err != nil {
		return err
	}
	return s.runJobs(ctx, jobs)
}

// runJobs runs jobs sequentially while holding the lock. One failing job does
// not stop the rest; failures are combined into the returned error.
func (s *Service) runJobs(ctx context.Context, jobs []Job) (err error) {
	locked, lockErr := s.lock.Acquire(ctx)
	if lockErr != nil {
		s.metrics.ObserveCycle(metrics.CycleLockError)
		return fmt.Errorf("lock acquire: %w", lockErr)
	}
	if !locked {
		s.metrics.ObserveCycle(metrics.CycleSkipped)
		s.logg.Info(ctx, "another cron instance holds the lock; skipping cycle")
		return nil
	}
	s.metrics.ObserveCycle(metrics.CycleRan)
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	cycleCtx := s.logg.WithField(ctx, "jobs", len(jobs))
	s.logg.Info(cycleCtx, "cron cycle starting")
	for _, job := range jobs {
		if jobErr := s.runJob(ctx, job); jobErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", job.Name(), jobErr))
		}
	}
	s.logg.Info(s.logg.WithField(cycleCtx, "failed", len(multierr.Errors(err))), "cron cycle complete")
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	started := s.now()
	err := job.Run(jobCtx)
	took := s.now().Sub(started)
	s.metrics.ObserveRun(job.Name(), took, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}
