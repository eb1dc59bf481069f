package receiptgen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestCleanupService_Cleanup_HappyPath(t *testing.T) {
	store := new(MockStore)
	cfg := DefaultConfig()
	cfg.PoisonRetention = 48 * time.Hour

	var gotCutoff time.Time
	store.On("DeleteRequeuedPoisonRecords", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		gotCutoff = args.Get(1).(time.Time)
	}).Return(int64(3), nil).Once()

	metrics := new(MockMetricsCollector)
	metrics.On("RecordGauge", metricCleanupDeleted, float64(3), mock.Anything).Once()

	service := NewCleanupService(store, cfg, zap.NewNop(), metrics)
	err := service.Cleanup(context.Background())
	assert.NoError(t, err)

	expected := time.Now().Add(-48 * time.Hour)
	assert.WithinDuration(t, expected, gotCutoff, time.Minute)
	store.AssertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestCleanupService_Cleanup_NothingToDelete(t *testing.T) {
	store := new(MockStore)
	store.On("DeleteRequeuedPoisonRecords", mock.Anything, mock.Anything).Return(int64(0), nil).Once()

	metrics := new(MockMetricsCollector)

	service := NewCleanupService(store, DefaultConfig(), zap.NewNop(), metrics)
	err := service.Cleanup(context.Background())
	assert.NoError(t, err)

	metrics.AssertNotCalled(t, "RecordGauge", mock.Anything, mock.Anything, mock.Anything)
}

func TestCleanupService_Cleanup_StoreFails(t *testing.T) {
	store := new(MockStore)
	store.On("DeleteRequeuedPoisonRecords", mock.Anything, mock.Anything).Return(int64(0), assert.AnError).Once()

	service := NewCleanupService(store, DefaultConfig(), zap.NewNop(), nil)
	err := service.Cleanup(context.Background())
	assert.Error(t, err)
}
