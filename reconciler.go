package receiptgen

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reconciler folds generation outcomes back into the work item and walks the
// retry ladder: success moves the item to GENERATED, a fatal failure or an
// exhausted retry budget moves it to FAILED, anything else re-enqueues the
// source message and moves the item to RETRY.
type Reconciler struct {
	queue      Queue
	logger     *zap.Logger
	metrics    MetricsCollector
	maxRetries int
}

func NewReconciler(queue Queue, cfg *Config, logger *zap.Logger, metrics MetricsCollector) *Reconciler {
	if queue == nil {
		queue = NewNopQueue()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NopMetricsCollector{}
	}
	return &Reconciler{
		queue:      queue,
		logger:     logger,
		metrics:    metrics,
		maxRetries: cfg.MaxRetries,
	}
}

// ApplyReceiptOutcomes records each role's outcome on the receipt and
// reports whether every required role succeeded and whether any failure
// is fatal.
func ApplyReceiptOutcomes(receipt *Receipt, generation *Generation) (ok bool, fatal bool) {
	ok = true

	if generation.Debtor != nil {
		switch generation.Debtor.Kind {
		case OutcomeSuccess:
			receipt.MdAttach = &ReceiptMetadata{Name: generation.Debtor.Name, URL: generation.Debtor.URL}
			receipt.ReasonErr = nil
		case OutcomeFailed:
			receipt.ReasonErr = &ReasonError{Code: generation.Debtor.Code, Message: generation.Debtor.Message}
			ok = false
			fatal = fatal || generation.Debtor.Fatal()
		}
	} else if generation.OnlyDebtor {
		// only-debtor generation must always yield a debtor outcome
		ok = false
	}

	if generation.OnlyDebtor {
		return ok, fatal
	}

	if generation.Payer == nil {
		return ok, fatal
	}
	switch generation.Payer.Kind {
	case OutcomeSuccess:
		receipt.MdAttachPayer = &ReceiptMetadata{Name: generation.Payer.Name, URL: generation.Payer.URL}
		receipt.ReasonErrPayer = nil
	case OutcomeFailed:
		receipt.ReasonErrPayer = &ReasonError{Code: generation.Payer.Code, Message: generation.Payer.Message}
		ok = false
		fatal = fatal || generation.Payer.Fatal()
	}
	return ok, fatal
}

// ApplyCartOutcomes records the payer and per-payment outcomes on the cart
// work item.
func ApplyCartOutcomes(cart *CartForReceipt, generation *CartGeneration) (ok bool, fatal bool) {
	ok = true
	payload := cart.Payload

	if payload.PayerFiscalCode != "" {
		if generation.Payer == nil {
			ok = false
		} else {
			switch generation.Payer.Kind {
			case OutcomeSuccess:
				payload.MdAttachPayer = &ReceiptMetadata{Name: generation.Payer.Name, URL: generation.Payer.URL}
				payload.ReasonErrPayer = nil
			case OutcomeFailed:
				payload.ReasonErrPayer = &ReasonError{Code: generation.Payer.Code, Message: generation.Payer.Message}
				ok = false
				fatal = fatal || generation.Payer.Fatal()
			}
		}
	}

	for _, payment := range payload.Cart {
		if payment.DebtorFiscalCode == AnonymousTaxCode || payment.DebtorFiscalCode == payload.PayerFiscalCode {
			continue
		}
		outcome := generation.Debtors[payment.BizEventID]
		if outcome == nil {
			ok = false
			continue
		}
		switch outcome.Kind {
		case OutcomeSuccess:
			payment.MdAttach = &ReceiptMetadata{Name: outcome.Name, URL: outcome.URL}
			payment.ReasonErr = nil
		case OutcomeFailed:
			payment.ReasonErr = &ReasonError{Code: outcome.Code, Message: outcome.Message}
			ok = false
			fatal = fatal || outcome.Fatal()
		}
	}
	return ok, fatal
}

// ReconcileReceipt applies the generation result and moves the receipt to
// its next status. raw is the source message to re-enqueue on a retriable
// failure. The caller persists the receipt afterwards.
func (r *Reconciler) ReconcileReceipt(ctx context.Context, receipt *Receipt, generation *Generation, raw []byte) Status {
	ok, fatal := ApplyReceiptOutcomes(receipt, generation)
	if ok {
		receipt.Status = StatusGenerated
		receipt.GeneratedAt = time.Now().Unix()
		r.metrics.IncrementCounter(metricGenerated, nil)
		return receipt.Status
	}
	receipt.Status = r.nextFailureStatus(ctx, receipt.EventID, &receipt.NumRetry, fatal, raw)
	return receipt.Status
}

// ReconcileCart is the cart counterpart of ReconcileReceipt.
func (r *Reconciler) ReconcileCart(ctx context.Context, cart *CartForReceipt, generation *CartGeneration, raw []byte) Status {
	ok, fatal := ApplyCartOutcomes(cart, generation)
	if ok {
		cart.Status = StatusGenerated
		cart.GeneratedAt = time.Now().Unix()
		r.metrics.IncrementCounter(metricGenerated, nil)
		return cart.Status
	}
	cart.Status = r.nextFailureStatus(ctx, cart.EventID, &cart.NumRetry, fatal, raw)
	return cart.Status
}

// nextFailureStatus decides between FAILED and RETRY. The retry budget is
// checked before re-enqueueing so an exhausted item never goes back on the
// queue.
func (r *Reconciler) nextFailureStatus(ctx context.Context, eventID string, numRetry *int, fatal bool, raw []byte) Status {
	if fatal {
		r.logger.Warn("generation failed with a non-retriable error",
			zap.String("event_id", eventID),
		)
		r.metrics.IncrementCounter(metricFailed, nil)
		return StatusFailed
	}
	if *numRetry > r.maxRetries {
		r.logger.Warn("retry budget exhausted",
			zap.String("event_id", eventID),
			zap.Int("num_retry", *numRetry),
		)
		r.metrics.IncrementCounter(metricFailed, nil)
		return StatusFailed
	}
	*numRetry++
	if err := r.queue.Enqueue(ctx, eventID, raw); err != nil {
		r.logger.Error("re-enqueue failed",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		r.metrics.IncrementCounter(metricFailed, nil)
		return StatusFailed
	}
	r.metrics.IncrementCounter(metricRetried, nil)
	return StatusRetry
}
