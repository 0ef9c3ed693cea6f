package jobs

import (
	"context"

	"telemt-admin/internal/logger"
	"telemt-admin/internal/service"
)

// CredentialLister reads the usernames present in the proxy configuration.
type CredentialLister interface {
	Usernames() ([]string, error)
}

// Notifier delivers a plain text message to every administrator.
type Notifier interface {
	NotifyAdmins(ctx context.Context, text string)
}

type NotifierFunc func(ctx context.Context, text string)

func (f NotifierFunc) NotifyAdmins(ctx context.Context, text string) {
	f(ctx, text)
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	registration service.RegistrationService
	creds        CredentialLister
	notifier     Notifier
}

// NewJobRunner creates a job runner. A nil notifier disables admin messages.
func NewJobRunner(registration service.RegistrationService, creds CredentialLister, notifier Notifier) *JobRunner {
	return &JobRunner{
		registration: registration,
		creds:        creds,
		notifier:     notifier,
	}
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	log := logger.WithComponent("jobs").With("job", jobName)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
		}
	}()

	log.Info("Starting job")
	jobFunc()
	log.Info("Job completed")
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.Reconcile()
	jr.SendPendingDigest()
}
