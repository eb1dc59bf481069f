package receiptgen

import (
	"go.uber.org/zap"

	"github.com/padigital/receiptgen/blobstore"
)

// Carrier holds the shared dependencies for the receipt pipeline services.
// It acts as a dependency injection container for the various processors.
type Carrier struct {
	store     Store
	queue     Queue
	renderer  Renderer
	artifacts blobstore.ArtifactStore
	cipher    *Cipher
	tokenizer Tokenizer
	cfg       *Config
	metrics   MetricsCollector
	logger    *zap.Logger
}

// NewCarrier creates a new Carrier with the given options. The carrier is
// responsible for holding shared resources like the document store, queue,
// renderer, artifact store, logger and metrics collector.
func NewCarrier(store Store, opts ...CarrierOption) (*Carrier, error) {
	c := &Carrier{
		store:     store,
		logger:    zap.NewNop(),
		metrics:   NewNopMetricsCollector(),
		cfg:       DefaultConfig(),
		tokenizer: NopTokenizer{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.queue == nil {
		c.queue = NewNopQueue()
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Carrier) builder() *TemplateBuilder {
	return NewTemplateBuilder(c.cfg)
}

func (c *Carrier) generator() *Generator {
	return NewGenerator(c.builder(), c.renderer, c.artifacts, c.cfg, c.logger)
}

func (c *Carrier) reconciler() *Reconciler {
	return NewReconciler(c.queue, c.cfg, c.logger, c.metrics)
}

// Service builds the generation message processor.
func (c *Carrier) Service() *Service {
	return NewService(c.store, c.generator(), c.reconciler(), c.cfg, c.logger, c.metrics)
}

// PoisonService builds the poison queue processor.
func (c *Carrier) PoisonService() *PoisonService {
	return NewPoisonService(c.store, c.queue, c.cipher, c.logger, c.metrics)
}

// ReviewService builds the reviewed-record requeue processor.
func (c *Carrier) ReviewService() *ReviewService {
	return NewReviewService(c.store, c.queue, c.cipher, c.logger, c.metrics)
}

// Regenerator builds the helpdesk regeneration entry point.
func (c *Carrier) Regenerator() *Regenerator {
	return NewRegenerator(c.store, c.generator(), c.reconciler(), NewValidator(c.cfg), c.builder(), c.tokenizer, c.cfg, c.logger)
}

// CleanupService builds the poison record retention service.
func (c *Carrier) CleanupService() *CleanupService {
	return NewCleanupService(c.store, c.cfg, c.logger, c.metrics)
}

// Dispatcher wires the background workers: the review poller and the poison
// record cleanup.
func (c *Carrier) Dispatcher() *Dispatcher {
	return NewDispatcher(c.logger,
		NewReviewWorker(c.ReviewService(), c.cfg, c.logger, WithWorkerMetrics(c.metrics)),
		NewCleanupWorker(c.CleanupService(), c.cfg, c.logger, WithWorkerMetrics(c.metrics)),
	)
}
