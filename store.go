package receiptgen

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store implementations when the requested
// document does not exist.
var ErrNotFound = errors.New("document not found")

// Store is the document store behind the pipeline. Saves are upserts with
// last-write-wins semantics.
type Store interface {
	// GetReceipt loads the receipt work item keyed by its source event id.
	GetReceipt(ctx context.Context, eventID string) (*Receipt, error)
	SaveReceipt(ctx context.Context, receipt *Receipt) error

	// GetCart loads the cart work item keyed by its transaction id.
	GetCart(ctx context.Context, transactionID string) (*CartForReceipt, error)
	SaveCart(ctx context.Context, cart *CartForReceipt) error

	GetBizEvent(ctx context.Context, eventID string) (*BizEvent, error)
	GetBizEventsByTransaction(ctx context.Context, transactionID string) ([]BizEvent, error)

	SavePoisonRecord(ctx context.Context, record *PoisonRecord) error
	UpdatePoisonRecord(ctx context.Context, record *PoisonRecord) error
	// FetchReviewedPoisonRecords returns at most limit records in REVIEWED
	// status, oldest first.
	FetchReviewedPoisonRecords(ctx context.Context, limit int) ([]PoisonRecord, error)
	// DeleteRequeuedPoisonRecords removes REQUEUED records created before
	// cutoff and reports how many were deleted.
	DeleteRequeuedPoisonRecords(ctx context.Context, cutoff time.Time) (int64, error)
}
