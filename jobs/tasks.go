// Package jobs runs the background maintenance work: the nightly
// balance drift scan and idempotency key pruning.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vastrabill/vastrabill/internal/jobs"
	"github.com/vastrabill/vastrabill/internal/ledger"
	"github.com/vastrabill/vastrabill/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerDriftScan recomputes every balance and logs drift.
	TaskLedgerDriftScan = "ledger:drift_scan"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// idempotencyRetention is how long processed request keys are kept.
const idempotencyRetention = 7 * 24 * time.Hour

// NewLedgerDriftScanTask constructs the drift scan task.
func NewLedgerDriftScanTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerDriftScan, nil)
}

// NewIdempotencyCleanupTask constructs the key cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// LedgerDriftScanHandler processes TaskLedgerDriftScan tasks.
func LedgerDriftScanHandler(scanner *ledger.DriftScanner, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("ledger_drift_scan")
		drifted, err := scanner.Scan(ctx)
		metrics.AddDrift(drifted)
		return tracker.End(err)
	}
}

// IdempotencyCleanupHandler processes TaskIdempotencyCleanup tasks.
func IdempotencyCleanupHandler(store *shared.IdempotencyStore, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("idempotency_cleanup")
		if err := store.Cleanup(ctx, idempotencyRetention); err != nil {
			return tracker.End(err)
		}
		if logger != nil {
			logger.Info("idempotency keys pruned",
				slog.Duration("retention", idempotencyRetention))
		}
		return tracker.End(nil)
	}
}
