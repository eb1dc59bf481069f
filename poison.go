package receiptgen

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PoisonService handles messages the generation path could not deliver. A
// message that has not been through the poison path yet is marked and sent
// back to the queue for one more attempt; anything else is encrypted and
// parked for human review, and the matching work item is moved to TO_REVIEW.
type PoisonService struct {
	store   Store
	queue   Queue
	cipher  *Cipher
	logger  *zap.Logger
	metrics MetricsCollector
}

func NewPoisonService(store Store, queue Queue, cipher *Cipher, logger *zap.Logger, metrics MetricsCollector) *PoisonService {
	if queue == nil {
		queue = NewNopQueue()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NopMetricsCollector{}
	}
	return &PoisonService{
		store:   store,
		queue:   queue,
		cipher:  cipher,
		logger:  logger,
		metrics: metrics,
	}
}

// ProcessPoisonMessage handles one message from the poison queue.
func (p *PoisonService) ProcessPoisonMessage(ctx context.Context, raw []byte) error {
	events, err := DecodeBizEventMessage(raw)
	if err != nil {
		p.logger.Error("poison message payload is not parseable", zap.Error(err))
		return p.park(ctx, raw, "", false)
	}

	event := &events[0]
	multiItem := len(events) > 1

	if event.AttemptedPoisonRetry {
		p.logger.Info("poison message already retried, sending to review",
			zap.String("event_id", event.ID),
		)
		return p.park(ctx, raw, ReceiptEventReference(event, multiItem), multiItem)
	}

	// mark the whole message so a second poison pass goes straight to review
	events[0].AttemptedPoisonRetry = true
	payload, err := EncodeBizEventMessage(events)
	if err != nil {
		p.logger.Error("re-encoding poison message failed",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return p.park(ctx, raw, ReceiptEventReference(event, multiItem), multiItem)
	}

	if err := p.queue.Enqueue(ctx, event.ID, payload); err != nil {
		p.logger.Error("re-enqueueing poison message failed, sending to review",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return p.park(ctx, raw, ReceiptEventReference(event, multiItem), multiItem)
	}

	p.logger.Info("poison message requeued for one more attempt",
		zap.String("event_id", event.ID),
	)
	return nil
}

// park stores the message as an encrypted poison record and flips the work
// item, when one can be identified, to TO_REVIEW.
func (p *PoisonService) park(ctx context.Context, raw []byte, workItemID string, multiItem bool) error {
	record := &PoisonRecord{
		ID:         uuid.NewString(),
		WorkItemID: workItemID,
		Status:     PoisonStatusToReview,
		CreatedAt:  time.Now(),
	}

	if p.cipher == nil {
		record.MessagePayload = string(raw)
	} else if encoded, err := p.cipher.Encrypt(string(raw)); err != nil {
		record.MessagePayload = string(raw)
		record.MessageError = err.Error()
	} else {
		record.MessagePayload = encoded
	}

	if err := p.store.SavePoisonRecord(ctx, record); err != nil {
		return err
	}
	p.metrics.IncrementCounter(metricParked, nil)

	if workItemID == "" {
		return nil
	}
	p.markWorkItemToReview(ctx, workItemID, multiItem)
	return nil
}

// markWorkItemToReview is best effort: a missing work item is logged, never
// fatal, so the poison record always survives.
func (p *PoisonService) markWorkItemToReview(ctx context.Context, workItemID string, multiItem bool) {
	if multiItem {
		cart, err := p.store.GetCart(ctx, workItemID)
		if err != nil {
			p.logWorkItemLookupFailure(workItemID, err)
			return
		}
		cart.Status = StatusToReview
		if err := p.store.SaveCart(ctx, cart); err != nil {
			p.logger.Error("updating cart to review failed",
				zap.String("transaction_id", workItemID),
				zap.Error(err),
			)
		}
		return
	}

	receipt, err := p.store.GetReceipt(ctx, workItemID)
	if err != nil {
		p.logWorkItemLookupFailure(workItemID, err)
		return
	}
	receipt.Status = StatusToReview
	if err := p.store.SaveReceipt(ctx, receipt); err != nil {
		p.logger.Error("updating receipt to review failed",
			zap.String("event_id", workItemID),
			zap.Error(err),
		)
	}
}

func (p *PoisonService) logWorkItemLookupFailure(workItemID string, err error) {
	if errors.Is(err, ErrNotFound) {
		p.logger.Warn("no work item found for poison message",
			zap.String("work_item_id", workItemID),
		)
		return
	}
	p.logger.Error("loading work item for poison message failed",
		zap.String("work_item_id", workItemID),
		zap.Error(err),
	)
}
