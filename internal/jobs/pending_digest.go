package jobs

import (
	"context"
	"fmt"

	"telemt-admin/internal/logger"
)

// SendPendingDigest tells admins how many registration requests wait for a decision.
func (jr *JobRunner) SendPendingDigest() {
	jr.runWithRecovery("SendPendingDigest", func() {
		ctx := context.Background()
		sent, err := jr.pendingDigest(ctx)
		if err != nil {
			logger.Error("Failed to build pending digest", "error", err)
			return
		}
		logger.Info("Pending digest processed", "sent", sent)
	})
}

func (jr *JobRunner) pendingDigest(ctx context.Context) (bool, error) {
	stats, err := jr.registration.Stats(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load stats: %w", err)
	}
	if stats.Pending == 0 || jr.notifier == nil {
		return false, nil
	}
	jr.notifier.NotifyAdmins(ctx, fmt.Sprintf("📥 %d registration request(s) waiting for review.", stats.Pending))
	return true, nil
}
