package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"creditslot/internal/logger"
	"creditslot/internal/payout"
)

// Job is a unit of periodic work. Each run gets its own deadline.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

type Scheduler struct {
	cfg     Config
	jobs    []Job
	running atomic.Bool
}

func New(cfg Config, jobs ...Job) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Scheduler{cfg: cfg, jobs: jobs}
}

// PayoutJobs scans ended slots first so fresh payouts whose release time
// already passed are moved to pending in the same run.
func PayoutJobs(svc payout.Service) []Job {
	return []Job{
		{
			Name: "payout_scan",
			Run: func(ctx context.Context) error {
				report, err := svc.ScanAndCalculate(ctx)
				if err != nil {
					return err
				}
				logger.Info("payout scan finished",
					"calculated", len(report.Calculated),
					"failed", len(report.Failed),
					"not_ended", report.NotEnded,
				)
				return nil
			},
		},
		{
			Name: "payout_release",
			Run: func(ctx context.Context) error {
				n, err := svc.ReleaseDue(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					logger.Info("payouts released", "count", n)
				}
				return nil
			},
		},
	}
}

// ErrAlreadyRunning is returned by RunOnce when a previous run has not finished.
var ErrAlreadyRunning = errors.New("scheduler: run already in progress")

// RunOnce executes every job in order. A failing job does not stop the ones after it.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	var errs []error
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.runJob(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) runJob(parent context.Context, job Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.Timeout)
	defer cancel()

	err := job.Run(ctx)
	elapsed := time.Since(start)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("scheduled job timed out", "job", job.Name, "timeout", s.cfg.Timeout.String(), "elapsed", elapsed.String())
	} else {
		logger.Error("scheduled job failed", "job", job.Name, "error", err, "elapsed", elapsed.String())
	}
	return err
}

// Start runs the jobs immediately and then on every tick until ctx is cancelled.
// A run that overlaps one started through RunOnce elsewhere is skipped.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	logger.Info("scheduler started", "interval", s.cfg.Interval.String(), "jobs", len(s.jobs))
	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	err := s.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyRunning):
		logger.Warn("skipping scheduler run, previous run still active")
	default:
		logger.Warn("scheduler run failed", "error", err)
	}
}
