package receiptgen

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CleanupService purges requeued poison records once they have aged past the
// retention window. Work items are never deleted.
type CleanupService struct {
	store     Store
	retention time.Duration
	logger    *zap.Logger
	metrics   MetricsCollector
}

func NewCleanupService(store Store, cfg *Config, logger *zap.Logger, metrics MetricsCollector) *CleanupService {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NopMetricsCollector{}
	}
	return &CleanupService{
		store:     store,
		retention: cfg.PoisonRetention,
		logger:    logger,
		metrics:   metrics,
	}
}

// Cleanup deletes requeued poison records created before the retention cutoff.
func (c *CleanupService) Cleanup(ctx context.Context) error {
	cutoff := time.Now().Add(-c.retention)
	deleted, err := c.store.DeleteRequeuedPoisonRecords(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("deleting requeued poison records: %w", err)
	}
	if deleted > 0 {
		c.logger.Info("Cleaned up requeued poison records",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
		c.metrics.RecordGauge(metricCleanupDeleted, float64(deleted), nil)
	}
	return nil
}

// NewCleanupWorker runs the cleanup on a fixed interval.
func NewCleanupWorker(cleanup *CleanupService, cfg *Config, logger *zap.Logger, opts ...WorkerOption) *BaseWorker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewBaseWorker("poison-cleanup", cfg.CleanupInterval, logger, cleanup.Cleanup, opts...)
}
