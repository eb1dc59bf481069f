package receiptgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, int64(10000), cfg.MinPDFSize)
	assert.True(t, cfg.EcommerceFilterEnabled)
	assert.Equal(t, []string{"IO", "CHECKOUT", "WISP", "CHECKOUT_CART"}, cfg.AuthenticatedChannels)
	assert.Contains(t, cfg.UnwantedRemittanceInfo, "pagamento bpay")
	assert.Equal(t, "pagopa-ricevuta", cfg.ReceiptPrefix)
	assert.Equal(t, "pagopa-ricevuta-carrello", cfg.CartPrefix)
	assert.Equal(t, 100, cfg.ReviewBatchSize)
	assert.Equal(t, 30*time.Second, cfg.ReviewPollInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.PoisonRetention)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	t.Run("missing prefixes", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ReceiptPrefix = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive min pdf size", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MinPDFSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty channel allow list", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AuthenticatedChannels = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative max retries", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxRetries = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestNewCarrier_Defaults(t *testing.T) {
	store := new(MockStore)
	carrier, err := NewCarrier(store)
	require.NoError(t, err)

	assert.NotNil(t, carrier.Service())
	assert.NotNil(t, carrier.PoisonService())
	assert.NotNil(t, carrier.ReviewService())
	assert.NotNil(t, carrier.Regenerator())
	assert.NotNil(t, carrier.CleanupService())
	assert.NotNil(t, carrier.Dispatcher())
}

func TestNewCarrier_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReceiptPrefix = ""

	_, err := NewCarrier(new(MockStore), WithConfig(cfg))
	assert.Error(t, err)
}
