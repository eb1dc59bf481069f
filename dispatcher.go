package receiptgen

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher runs the pipeline's background workers, the review poller and
// the poison record cleanup, and shuts them down together.
type Dispatcher struct {
	logger  *zap.Logger
	workers []Worker

	mu       sync.RWMutex
	group    sync.WaitGroup
	stopOnce sync.Once
	quit     chan struct{}
	running  bool
}

// NewDispatcher creates a dispatcher over the given workers.
func NewDispatcher(logger *zap.Logger, workers ...Worker) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger:  logger,
		workers: workers,
		quit:    make(chan struct{}),
	}
}

// Start launches every worker and blocks until the context is cancelled or
// Stop is called, then waits for all workers to finish.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.logger.Warn("dispatcher already running")
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("dispatcher starting", zap.Int("workers", len(d.workers)))

	for _, w := range d.workers {
		d.group.Add(1)
		go func(worker Worker) {
			defer d.group.Done()
			d.logger.Info("launching worker", zap.String("worker", worker.Name()))
			worker.Start(ctx)
		}(w)
	}

	select {
	case <-ctx.Done():
		d.Stop()
	case <-d.quit:
	}

	d.group.Wait()
	d.logger.Info("dispatcher stopped")

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop shuts down every worker. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if !d.running {
			d.logger.Warn("stop requested on a dispatcher that is not running")
			return
		}
		close(d.quit)
		for _, worker := range d.workers {
			worker.Stop()
		}
	})
}

// IsStarted reports whether the dispatcher is currently running.
func (d *Dispatcher) IsStarted() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}
