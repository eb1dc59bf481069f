package receiptgen

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockQueue is a mock implementation of the Queue interface.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, key string, payload []byte) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

func (m *MockQueue) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockMetricsCollector is a mock implementation of the MetricsCollector interface.
type MockMetricsCollector struct {
	mock.Mock
}

func (m *MockMetricsCollector) IncrementCounter(name string, tags map[string]string) {
	m.Called(name, tags)
}

func (m *MockMetricsCollector) RecordDuration(name string, duration time.Duration, tags map[string]string) {
	m.Called(name, duration, tags)
}

func (m *MockMetricsCollector) RecordGauge(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}
