package jobs

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"telemt-admin/internal/logger"
)

// ReconcileReport lists usernames present on only one side.
type ReconcileReport struct {
	// Orphaned credentials exist in the proxy config without an approved ledger entry.
	Orphaned []string
	// Missing credentials belong to approved users but are absent from the proxy config.
	Missing []string
}

func (r *ReconcileReport) Consistent() bool {
	return len(r.Orphaned) == 0 && len(r.Missing) == 0
}

// Reconcile logs differences between the ledger and the proxy config. It
// never repairs anything.
func (jr *JobRunner) Reconcile() {
	jr.runWithRecovery("Reconcile", func() {
		report, err := jr.reconcile(context.Background())
		if err != nil {
			logger.Error("Failed to reconcile credentials", "error", err)
			return
		}
		if report.Consistent() {
			logger.Info("Credentials consistent with ledger")
			return
		}
		logger.Warn("Credentials out of sync with ledger",
			"orphaned", report.Orphaned, "missing", report.Missing)
	})
}

func (jr *JobRunner) reconcile(ctx context.Context) (*ReconcileReport, error) {
	approved, err := jr.registration.ApprovedUsernames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved usernames: %w", err)
	}
	present, err := jr.creds.Usernames()
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	report := &ReconcileReport{
		Orphaned: difference(present, approved),
		Missing:  difference(approved, present),
	}
	return report, nil
}

// difference returns the sorted elements of a that are not in b, ignoring
// usernames outside the tg_ namespace.
func difference(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		seen[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := seen[s]; !ok && isManaged(s) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

func isManaged(username string) bool {
	return strings.HasPrefix(username, "tg_")
}
