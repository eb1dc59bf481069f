package receiptgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrBizEventNotValid marks a message whose payload could not be decoded
	// into biz-events.
	ErrBizEventNotValid = errors.New("biz-event message not valid")
	// ErrReceiptNotFound marks a message with no matching receipt work item.
	ErrReceiptNotFound = errors.New("receipt not found")
	// ErrCartNotFound marks a cart message with no matching cart work item.
	ErrCartNotFound = errors.New("cart not found")
)

// Service consumes generation messages: it decodes the biz-events, routes
// single payments to the receipt path and multi-payment transactions to the
// cart path, runs generation and persists the reconciled work item.
type Service struct {
	store      Store
	generator  *Generator
	reconciler *Reconciler
	cfg        *Config
	logger     *zap.Logger
	metrics    MetricsCollector
}

func NewService(store Store, generator *Generator, reconciler *Reconciler, cfg *Config, logger *zap.Logger, metrics MetricsCollector) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NopMetricsCollector{}
	}
	return &Service{
		store:      store,
		generator:  generator,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// ProcessGenerate handles one raw generation message. A returned error means
// the message itself is undeliverable and belongs on the poison path;
// role-level generation failures are absorbed into the work item instead.
func (s *Service) ProcessGenerate(ctx context.Context, raw []byte) error {
	start := time.Now()
	defer func() {
		s.metrics.RecordDuration(metricProcessing, time.Since(start), nil)
	}()

	events, err := DecodeBizEventMessage(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBizEventNotValid, err)
	}
	if len(events) > 1 {
		return s.processCart(ctx, raw, events)
	}
	return s.processReceipt(ctx, raw, &events[0])
}

func (s *Service) processReceipt(ctx context.Context, raw []byte, event *BizEvent) error {
	receipt, err := s.store.GetReceipt(ctx, event.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: event %s", ErrReceiptNotFound, event.ID)
		}
		return fmt.Errorf("loading receipt for event %s: %w", event.ID, err)
	}

	if !receipt.Status.Startable() || receipt.EventData == nil {
		s.logger.Info("receipt not eligible for generation, discarding message",
			zap.String("event_id", event.ID),
			zap.String("status", string(receipt.Status)),
		)
		return nil
	}

	debtorCF := receipt.EventData.DebtorFiscalCode
	payerCF := receipt.EventData.PayerFiscalCode
	if (debtorCF == "" || debtorCF == AnonymousTaxCode) && payerCF == "" {
		receipt.Status = StatusFailed
		receipt.ReasonErr = &ReasonError{
			Code:    CodeInvalidReceipt,
			Message: "receipt has neither a debtor nor a payer identity",
		}
		s.metrics.IncrementCounter(metricFailed, nil)
		return s.store.SaveReceipt(ctx, receipt)
	}

	workDir, err := os.MkdirTemp(s.cfg.WorkingDir, "receipt-")
	if err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	generation := s.generator.GenerateReceipts(ctx, receipt, event, workDir)
	status := s.reconciler.ReconcileReceipt(ctx, receipt, generation, raw)

	s.logger.Info("receipt generation processed",
		zap.String("event_id", event.ID),
		zap.String("status", string(status)),
	)
	return s.store.SaveReceipt(ctx, receipt)
}

func (s *Service) processCart(ctx context.Context, raw []byte, events []BizEvent) error {
	transactionID := events[0].TransactionID()
	cart, err := s.store.GetCart(ctx, transactionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: transaction %s", ErrCartNotFound, transactionID)
		}
		return fmt.Errorf("loading cart for transaction %s: %w", transactionID, err)
	}

	if !cart.Status.Startable() || cart.Payload == nil {
		s.logger.Info("cart not eligible for generation, discarding message",
			zap.String("transaction_id", transactionID),
			zap.String("status", string(cart.Status)),
		)
		return nil
	}

	if cart.Payload.TotalNotice != len(events) || len(cart.Payload.Cart) != len(events) {
		s.logger.Warn("cart message does not match the stored cart, failing",
			zap.String("transaction_id", transactionID),
			zap.Int("total_notice", cart.Payload.TotalNotice),
			zap.Int("events", len(events)),
			zap.Int("payments", len(cart.Payload.Cart)),
		)
		cart.Status = StatusFailed
		cart.ReasonErr = &ReasonError{
			Code: CodeInvalidReceipt,
			Message: fmt.Sprintf("cart message carries %d events for a cart with totalNotice %d and %d payments",
				len(events), cart.Payload.TotalNotice, len(cart.Payload.Cart)),
		}
		s.metrics.IncrementCounter(metricFailed, nil)
		return s.store.SaveCart(ctx, cart)
	}

	if cartHasNoIdentities(cart.Payload) {
		cart.Status = StatusFailed
		cart.ReasonErr = &ReasonError{
			Code:    CodeInvalidReceipt,
			Message: "cart has neither a payer nor any debtor identity",
		}
		s.metrics.IncrementCounter(metricFailed, nil)
		return s.store.SaveCart(ctx, cart)
	}

	workDir, err := os.MkdirTemp(s.cfg.WorkingDir, "cart-")
	if err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	generation := s.generator.GenerateCartReceipts(ctx, cart, events, workDir)
	status := s.reconciler.ReconcileCart(ctx, cart, generation, raw)

	s.logger.Info("cart generation processed",
		zap.String("transaction_id", transactionID),
		zap.String("status", string(status)),
	)
	return s.store.SaveCart(ctx, cart)
}

// cartHasNoIdentities reports whether no artifact could ever be produced for
// the cart: no payer and every debtor absent or anonymous.
func cartHasNoIdentities(payload *CartPayload) bool {
	if payload.PayerFiscalCode != "" {
		return false
	}
	for _, payment := range payload.Cart {
		if payment.DebtorFiscalCode != "" && payment.DebtorFiscalCode != AnonymousTaxCode {
			return false
		}
	}
	return true
}
