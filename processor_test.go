package receiptgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(store Store, renderer Renderer) *Service {
	cfg := DefaultConfig()
	cfg.MinPDFSize = 1
	generator := NewGenerator(NewTemplateBuilder(cfg), renderer, &memArtifactStore{}, cfg, zap.NewNop())
	reconciler := NewReconciler(NewNopQueue(), cfg, zap.NewNop(), nil)
	return NewService(store, generator, reconciler, cfg, zap.NewNop(), nil)
}

func TestService_ProcessGenerate_UnparseableMessage(t *testing.T) {
	svc := newTestService(new(MockStore), &stubRenderer{size: 100})

	err := svc.ProcessGenerate(context.Background(), []byte("not a message"))
	assert.ErrorIs(t, err, ErrBizEventNotValid)
}

func TestService_ProcessGenerate_ReceiptNotFound(t *testing.T) {
	store := new(MockStore)
	store.On("GetReceipt", mock.Anything, "evt-1").Return(nil, ErrNotFound).Once()
	svc := newTestService(store, &stubRenderer{size: 100})

	err := svc.ProcessGenerate(context.Background(), []byte(`{"id":"evt-1"}`))
	assert.ErrorIs(t, err, ErrReceiptNotFound)
	store.AssertExpectations(t)
}

func TestService_ProcessGenerate_NotStartableIsDiscarded(t *testing.T) {
	store := new(MockStore)
	receipt := testReceipt("evt-1", "RSSMRA80A01H501U", "")
	receipt.Status = StatusGenerated
	store.On("GetReceipt", mock.Anything, "evt-1").Return(receipt, nil).Once()
	svc := newTestService(store, &stubRenderer{size: 100})

	err := svc.ProcessGenerate(context.Background(), []byte(`{"id":"evt-1"}`))
	assert.NoError(t, err)
	store.AssertNotCalled(t, "SaveReceipt", mock.Anything, mock.Anything)
}

func TestService_ProcessGenerate_NoIdentitiesFails(t *testing.T) {
	store := new(MockStore)
	receipt := testReceipt("evt-1", AnonymousTaxCode, "")
	store.On("GetReceipt", mock.Anything, "evt-1").Return(receipt, nil).Once()
	store.On("SaveReceipt", mock.Anything, receipt).Return(nil).Once()
	svc := newTestService(store, &stubRenderer{size: 100})

	err := svc.ProcessGenerate(context.Background(), []byte(`{"id":"evt-1"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, receipt.Status)
	require.NotNil(t, receipt.ReasonErr)
	assert.Equal(t, CodeInvalidReceipt, receipt.ReasonErr.Code)
	store.AssertExpectations(t)
}

func TestService_ProcessGenerate_HappyPath(t *testing.T) {
	store := new(MockStore)
	receipt := testReceipt("evt-1", "RSSMRA80A01H501U", "")
	store.On("GetReceipt", mock.Anything, "evt-1").Return(receipt, nil).Once()
	store.On("SaveReceipt", mock.Anything, receipt).Return(nil).Once()
	svc := newTestService(store, &stubRenderer{size: 100})

	payload, err := EncodeBizEventMessage([]BizEvent{*validBizEvent("evt-1")})
	require.NoError(t, err)

	err = svc.ProcessGenerate(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, receipt.Status)
	require.NotNil(t, receipt.MdAttach)
	store.AssertExpectations(t)
}

func TestService_ProcessGenerate_CartNotFound(t *testing.T) {
	store := new(MockStore)
	store.On("GetCart", mock.Anything, "tx-0001").Return(nil, ErrNotFound).Once()
	svc := newTestService(store, &stubRenderer{size: 100})

	payload, err := EncodeBizEventMessage(cartEvents("evt-1", "evt-2"))
	require.NoError(t, err)

	err = svc.ProcessGenerate(context.Background(), payload)
	assert.ErrorIs(t, err, ErrCartNotFound)
	store.AssertExpectations(t)
}

func TestService_ProcessGenerate_CartCountMismatchFails(t *testing.T) {
	store := new(MockStore)
	renderer := &stubRenderer{size: 100}
	cart := testCart("BNCLGU80A01H501B",
		&CartPayment{BizEventID: "evt-1", DebtorFiscalCode: "RSSMRA80A01H501U"},
	)
	store.On("GetCart", mock.Anything, "tx-0001").Return(cart, nil).Once()
	store.On("SaveCart", mock.Anything, cart).Return(nil).Once()
	svc := newTestService(store, renderer)

	payload, err := EncodeBizEventMessage(cartEvents("evt-1", "evt-2"))
	require.NoError(t, err)

	err = svc.ProcessGenerate(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, cart.Status)
	require.NotNil(t, cart.ReasonErr)
	assert.Equal(t, CodeInvalidReceipt, cart.ReasonErr.Code)
	assert.Contains(t, cart.ReasonErr.Message, "totalNotice 1")
	assert.Equal(t, 0, renderer.calls)
	store.AssertExpectations(t)
}

func TestService_ProcessGenerate_CartNoIdentitiesFails(t *testing.T) {
	store := new(MockStore)
	cart := testCart("",
		&CartPayment{BizEventID: "evt-1", DebtorFiscalCode: AnonymousTaxCode},
		&CartPayment{BizEventID: "evt-2", DebtorFiscalCode: ""},
	)
	store.On("GetCart", mock.Anything, "tx-0001").Return(cart, nil).Once()
	store.On("SaveCart", mock.Anything, cart).Return(nil).Once()
	svc := newTestService(store, &stubRenderer{size: 100})

	payload, err := EncodeBizEventMessage(cartEvents("evt-1", "evt-2"))
	require.NoError(t, err)

	err = svc.ProcessGenerate(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, cart.Status)
	require.NotNil(t, cart.ReasonErr)
	store.AssertExpectations(t)
}

func TestService_ProcessGenerate_CartHappyPath(t *testing.T) {
	store := new(MockStore)
	cart := testCart("BNCLGU80A01H501B",
		&CartPayment{BizEventID: "evt-1", DebtorFiscalCode: "RSSMRA80A01H501U"},
		&CartPayment{BizEventID: "evt-2", DebtorFiscalCode: AnonymousTaxCode},
	)
	store.On("GetCart", mock.Anything, "tx-0001").Return(cart, nil).Once()
	store.On("SaveCart", mock.Anything, cart).Return(nil).Once()
	svc := newTestService(store, &stubRenderer{size: 100})

	payload, err := EncodeBizEventMessage(cartEvents("evt-1", "evt-2"))
	require.NoError(t, err)

	err = svc.ProcessGenerate(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, cart.Status)
	require.NotNil(t, cart.Payload.MdAttachPayer)
	require.NotNil(t, cart.Payload.Cart[0].MdAttach)
	assert.Nil(t, cart.Payload.Cart[1].MdAttach, "anonymous payment gets no artifact")
	store.AssertExpectations(t)
}
