package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
)

// Cleaner removes acknowledged actions older than the retention window.
type Cleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

type SyncCleanupWorker struct {
	cleaner   Cleaner
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewSyncCleanupWorker(cleaner Cleaner, retention, interval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *SyncCleanupWorker {
	return &SyncCleanupWorker{
		cleaner:   cleaner,
		retention: retention,
		interval:  interval,
		logger:    logger.Component("sync_cleanup"),
		metrics:   metrics,
	}
}

func (w *SyncCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *SyncCleanupWorker) RunOnce(ctx context.Context) {
	rows, err := w.cleaner.Cleanup(ctx, w.retention)
	if err != nil {
		w.logger.Error(err, "Failed to clean up synced actions")
		return
	}
	w.metrics.SyncCleaned.Add(float64(rows))
	if rows > 0 {
		w.logger.Info("Cleaned up synced actions", "rows", rows, "retention", w.retention.String())
	}
}
