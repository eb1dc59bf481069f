package receiptgen

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of the Store interface for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetReceipt(ctx context.Context, eventID string) (*Receipt, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Receipt), args.Error(1)
}

func (m *MockStore) SaveReceipt(ctx context.Context, receipt *Receipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *MockStore) GetCart(ctx context.Context, transactionID string) (*CartForReceipt, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CartForReceipt), args.Error(1)
}

func (m *MockStore) SaveCart(ctx context.Context, cart *CartForReceipt) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *MockStore) GetBizEvent(ctx context.Context, eventID string) (*BizEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BizEvent), args.Error(1)
}

func (m *MockStore) GetBizEventsByTransaction(ctx context.Context, transactionID string) ([]BizEvent, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]BizEvent), args.Error(1)
}

func (m *MockStore) SavePoisonRecord(ctx context.Context, record *PoisonRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStore) UpdatePoisonRecord(ctx context.Context, record *PoisonRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStore) FetchReviewedPoisonRecords(ctx context.Context, limit int) ([]PoisonRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PoisonRecord), args.Error(1)
}

func (m *MockStore) DeleteRequeuedPoisonRecords(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
