// Package embedded holds the integration surface for applications that embed
// the receipt pipeline: the interfaces a host application may implement and
// pass in, kept free of third-party imports.
package embedded

import (
	"context"
	"io"
	"time"
)

const (
	WorkItemStatusInserted   = "INSERTED"
	WorkItemStatusRetry      = "RETRY"
	WorkItemStatusGenerated  = "GENERATED"
	WorkItemStatusFailed     = "FAILED"
	WorkItemStatusIONotified = "IO_NOTIFIED"
	WorkItemStatusToReview   = "TO_REVIEW"
)

const (
	PoisonStatusToReview = "TO_REVIEW"
	PoisonStatusReviewed = "REVIEWED"
	PoisonStatusRequeued = "REQUEUED"
)

// Artifact is a stored PDF reference.
type Artifact struct {
	Name string
	URL  string
}

type Queue interface {
	Enqueue(ctx context.Context, key string, payload []byte) error
	Close() error
}

type ArtifactStore interface {
	Put(ctx context.Context, r io.Reader, name string) (Artifact, error)
}

type Tokenizer interface {
	Tokenize(ctx context.Context, fiscalCode string) (string, error)
}

type MetricsCollector interface {
	IncrementCounter(name string, tags map[string]string)
	RecordDuration(name string, duration time.Duration, tags map[string]string)
	RecordGauge(name string, value float64, tags map[string]string)
}

type Worker interface {
	Start(ctx context.Context)
	Stop()
	Name() string
}

type CleanupService interface {
	Cleanup(ctx context.Context) error
}
