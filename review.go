package receiptgen

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
)

// ReviewService resumes poison records a human has marked REVIEWED: the
// stored payload is decrypted, its work item is reset to INSERTED and the
// message goes back on the generation queue. Records are processed
// independently; one failure never blocks the rest of the batch.
type ReviewService struct {
	store   Store
	queue   Queue
	cipher  *Cipher
	logger  *zap.Logger
	metrics MetricsCollector
}

func NewReviewService(store Store, queue Queue, cipher *Cipher, logger *zap.Logger, metrics MetricsCollector) *ReviewService {
	if queue == nil {
		queue = NewNopQueue()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NopMetricsCollector{}
	}
	return &ReviewService{
		store:   store,
		queue:   queue,
		cipher:  cipher,
		logger:  logger,
		metrics: metrics,
	}
}

// ProcessPending fetches up to limit reviewed records and processes them.
func (r *ReviewService) ProcessPending(ctx context.Context, limit int) error {
	records, err := r.store.FetchReviewedPoisonRecords(ctx, limit)
	if err != nil {
		return fmt.Errorf("fetching reviewed poison records: %w", err)
	}
	r.ProcessReviewed(ctx, records)
	return nil
}

// ProcessReviewed requeues each REVIEWED record. Records in any other status
// are left untouched. A record that cannot be requeued goes back to
// TO_REVIEW with the failure attached.
func (r *ReviewService) ProcessReviewed(ctx context.Context, records []PoisonRecord) {
	for i := range records {
		record := &records[i]
		if record.Status != PoisonStatusReviewed {
			continue
		}

		if err := r.retryRecord(ctx, record); err != nil {
			r.logger.Error("requeueing reviewed poison record failed",
				zap.String("record_id", record.ID),
				zap.Error(err),
			)
			record.Status = PoisonStatusToReview
			record.MessageError = err.Error()
		} else {
			record.Status = PoisonStatusRequeued
			record.MessageError = ""
			r.metrics.IncrementCounter(metricRequeued, nil)
		}

		if err := r.store.UpdatePoisonRecord(ctx, record); err != nil {
			r.logger.Error("updating poison record failed",
				zap.String("record_id", record.ID),
				zap.Error(err),
			)
		}
	}
}

func (r *ReviewService) retryRecord(ctx context.Context, record *PoisonRecord) error {
	payload := record.MessagePayload
	if r.cipher != nil {
		decrypted, err := r.cipher.Decrypt(payload)
		if err != nil {
			return fmt.Errorf("decrypting payload: %w", err)
		}
		payload = decrypted
	}

	events, err := DecodeBizEventMessage([]byte(payload))
	if err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	multiItem := len(events) > 1
	reference := ReceiptEventReference(&events[0], multiItem)

	if err := r.resetWorkItem(ctx, reference, multiItem); err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(payload))
	if err := r.queue.Enqueue(ctx, reference, []byte(encoded)); err != nil {
		return fmt.Errorf("enqueueing payload: %w", err)
	}
	return nil
}

func (r *ReviewService) resetWorkItem(ctx context.Context, reference string, multiItem bool) error {
	if multiItem {
		cart, err := r.store.GetCart(ctx, reference)
		if err != nil {
			return fmt.Errorf("loading cart %s: %w", reference, err)
		}
		cart.Status = StatusInserted
		if err := r.store.SaveCart(ctx, cart); err != nil {
			return fmt.Errorf("saving cart %s: %w", reference, err)
		}
		return nil
	}

	receipt, err := r.store.GetReceipt(ctx, reference)
	if err != nil {
		return fmt.Errorf("loading receipt %s: %w", reference, err)
	}
	receipt.Status = StatusInserted
	if err := r.store.SaveReceipt(ctx, receipt); err != nil {
		return fmt.Errorf("saving receipt %s: %w", reference, err)
	}
	return nil
}
