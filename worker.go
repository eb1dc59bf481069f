package receiptgen

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker is a background task with a blocking Start and an idempotent Stop.
type Worker interface {
	Start(ctx context.Context)
	Stop()
	Name() string
}

// BaseWorker polls a work function on a fixed interval. Each poll is
// measured and failures are counted, tagged with the worker name, so the
// review and cleanup pollers show up separately in the collector.
type BaseWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger
	metrics  MetricsCollector
	poll     func(ctx context.Context) error

	mu       sync.RWMutex
	inflight sync.WaitGroup
	stopOnce sync.Once
	quit     chan struct{}
	running  bool
}

type WorkerOption func(*BaseWorker)

// WithWorkerMetrics attaches a collector for poll durations and failures.
func WithWorkerMetrics(metrics MetricsCollector) WorkerOption {
	return func(w *BaseWorker) {
		if metrics != nil {
			w.metrics = metrics
		}
	}
}

// NewBaseWorker creates a named interval worker around poll.
func NewBaseWorker(name string, interval time.Duration, logger *zap.Logger, poll func(ctx context.Context) error, opts ...WorkerOption) *BaseWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &BaseWorker{
		name:     name,
		interval: interval,
		logger:   logger,
		metrics:  &NopMetricsCollector{},
		poll:     poll,
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the poll loop. It blocks until the context is cancelled or
// Stop is called.
func (w *BaseWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Warn("worker already running", zap.String("worker", w.name))
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("worker started",
		zap.String("worker", w.name),
		zap.Duration("interval", w.interval),
	)
	defer w.logger.Info("worker stopped", zap.String("worker", w.name))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case <-ticker.C:
			// a Stop issued while waiting for the tick wins over the poll
			select {
			case <-w.quit:
				return
			default:
			}
			w.runPoll(ctx)
		}
	}
}

func (w *BaseWorker) runPoll(ctx context.Context) {
	w.inflight.Add(1)
	defer w.inflight.Done()

	if ctx.Err() != nil {
		return
	}

	tags := map[string]string{"worker": w.name}
	started := time.Now()
	err := w.poll(ctx)
	w.metrics.RecordDuration(metricWorkerPoll, time.Since(started), tags)
	if err != nil {
		w.metrics.IncrementCounter(metricWorkerErrors, tags)
		w.logger.Error("worker poll failed", zap.String("worker", w.name), zap.Error(err))
	}
}

// Stop signals the loop to exit and waits for an in-progress poll to
// finish. Safe to call more than once.
func (w *BaseWorker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.RLock()
		defer w.mu.RUnlock()
		if !w.running {
			return
		}
		close(w.quit)
		w.inflight.Wait()
	})
}

// Name returns the worker name.
func (w *BaseWorker) Name() string {
	return w.name
}

// NewReviewWorker polls the store for reviewed poison records and requeues
// them in batches.
func NewReviewWorker(review *ReviewService, cfg *Config, logger *zap.Logger, opts ...WorkerOption) *BaseWorker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewBaseWorker("poison-review", cfg.ReviewPollInterval, logger, func(ctx context.Context) error {
		return review.ProcessPending(ctx, cfg.ReviewBatchSize)
	}, opts...)
}
