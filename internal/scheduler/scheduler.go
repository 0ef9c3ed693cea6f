package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"telemt-admin/internal/config"
	"telemt-admin/internal/jobs"
	"telemt-admin/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a scheduler and registers every job with a non-empty schedule.
func NewScheduler(jobRunner *jobs.JobRunner, cfg config.SchedulerConfig) *Scheduler {
	// UTC with seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.register("Reconcile", cfg.Reconcile, s.jobs.Reconcile)
	s.register("SendPendingDigest", cfg.PendingDigest, s.jobs.SendPendingDigest)
	return s
}

func (s *Scheduler) register(name, schedule string, fn func()) {
	if schedule == "" {
		logger.Info("Cron job disabled", "job", name)
		return
	}
	if _, err := s.cron.AddFunc(schedule, fn); err != nil {
		logger.Error("Failed to register cron job", "job", name, "schedule", schedule, "error", err)
		return
	}
	logger.Info("Cron job registered", "job", name, "schedule", schedule)
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// JobCount reports how many jobs are registered.
func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}
