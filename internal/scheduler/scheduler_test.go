package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"telemt-admin/internal/config"
	"telemt-admin/internal/jobs"
)

func TestNewScheduler_RegistersConfiguredJobs(t *testing.T) {
	runner := jobs.NewJobRunner(nil, nil, nil)

	s := NewScheduler(runner, config.SchedulerConfig{Reconcile: "0 */15 * * * *", PendingDigest: "0 0 9 * * *"})
	assert.Equal(t, 2, s.JobCount())

	s = NewScheduler(runner, config.SchedulerConfig{Reconcile: "0 */15 * * * *"})
	assert.Equal(t, 1, s.JobCount())

	s = NewScheduler(runner, config.SchedulerConfig{Reconcile: "not a schedule"})
	assert.Equal(t, 0, s.JobCount())
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(jobs.NewJobRunner(nil, nil, nil), config.SchedulerConfig{})
	s.Start()
	s.Stop()
	assert.Equal(t, 0, s.JobCount())
}
