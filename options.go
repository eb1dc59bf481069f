package receiptgen

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/padigital/receiptgen/blobstore"
)

const (
	defaultMaxRetries         = 5
	defaultMinPDFSize         = 10000
	defaultReceiptPrefix      = "pagopa-ricevuta"
	defaultCartPrefix         = "pagopa-ricevuta-carrello"
	defaultReviewBatchSize    = 100
	defaultReviewPollInterval = 30 * time.Second
	defaultPoisonRetention    = 7 * 24 * time.Hour
	defaultCleanupInterval    = 1 * time.Hour
)

// Config enumerates every tunable of the pipeline. It is constructed once at
// startup and passed by reference; nothing reads the environment at use time.
type Config struct {
	// MaxRetries is the retry ceiling: a work item whose retry counter
	// exceeds it is demoted to FAILED instead of being re-enqueued.
	MaxRetries int `validate:"gte=0"`
	// MinPDFSize rejects rendered files below this many bytes as storage
	// failures rather than render failures.
	MinPDFSize int64 `validate:"gt=0"`
	// EcommerceFilterEnabled excludes events originating from the
	// e-commerce checkout channels from generation.
	EcommerceFilterEnabled bool
	// AuthenticatedChannels is the allow-list of channel origins whose
	// payer identity is trusted.
	AuthenticatedChannels []string `validate:"min=1"`
	// UnwantedRemittanceInfo is the denylist of remittance texts that must
	// not be used as the item subject.
	UnwantedRemittanceInfo []string
	// ReceiptPrefix and CartPrefix lead the artifact blob names.
	ReceiptPrefix string `validate:"required"`
	CartPrefix    string `validate:"required"`
	// WorkingDir hosts the per-invocation temp directories for rendered
	// files. Empty means the system temp dir.
	WorkingDir string
	// ReviewBatchSize caps how many reviewed poison records one worker
	// pass processes.
	ReviewBatchSize    int           `validate:"gt=0"`
	ReviewPollInterval time.Duration `validate:"gt=0"`
	// PoisonRetention is how long requeued poison records are kept before
	// the cleanup worker purges them. Work items are never deleted.
	PoisonRetention time.Duration `validate:"gt=0"`
	CleanupInterval time.Duration `validate:"gt=0"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:             defaultMaxRetries,
		MinPDFSize:             defaultMinPDFSize,
		EcommerceFilterEnabled: true,
		AuthenticatedChannels:  []string{"IO", "CHECKOUT", "WISP", "CHECKOUT_CART"},
		UnwantedRemittanceInfo: []string{"pagamento multibeneficiario", "pagamento bpay"},
		ReceiptPrefix:          defaultReceiptPrefix,
		CartPrefix:             defaultCartPrefix,
		ReviewBatchSize:        defaultReviewBatchSize,
		ReviewPollInterval:     defaultReviewPollInterval,
		PoisonRetention:        defaultPoisonRetention,
		CleanupInterval:        defaultCleanupInterval,
	}
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

//
// Carrier Options
//

type CarrierOption func(*Carrier)

func WithLogger(logger *zap.Logger) CarrierOption {
	return func(c *Carrier) {
		c.logger = logger
	}
}

func WithMetrics(metrics MetricsCollector) CarrierOption {
	return func(c *Carrier) {
		c.metrics = metrics
	}
}

func WithQueue(queue Queue) CarrierOption {
	return func(c *Carrier) {
		c.queue = queue
	}
}

func WithRenderer(renderer Renderer) CarrierOption {
	return func(c *Carrier) {
		c.renderer = renderer
	}
}

func WithArtifactStore(artifacts blobstore.ArtifactStore) CarrierOption {
	return func(c *Carrier) {
		c.artifacts = artifacts
	}
}

func WithConfig(cfg *Config) CarrierOption {
	return func(c *Carrier) {
		c.cfg = cfg
	}
}

func WithCipher(cipher *Cipher) CarrierOption {
	return func(c *Carrier) {
		c.cipher = cipher
	}
}

func WithTokenizer(tokenizer Tokenizer) CarrierOption {
	return func(c *Carrier) {
		c.tokenizer = tokenizer
	}
}
