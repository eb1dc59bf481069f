package receiptgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCart(payerCF string, payments ...*CartPayment) *CartForReceipt {
	return &CartForReceipt{
		ID:      "tx-0001",
		EventID: "tx-0001",
		Status:  StatusInserted,
		Payload: &CartPayload{
			PayerFiscalCode: payerCF,
			TotalNotice:     len(payments),
			Cart:            payments,
		},
	}
}

func cartEvents(ids ...string) []BizEvent {
	events := make([]BizEvent, 0, len(ids))
	for _, id := range ids {
		events = append(events, *validBizEvent(id))
	}
	return events
}

func TestGenerator_GenerateCartReceipts_PayerAndDebtors(t *testing.T) {
	renderer := &stubRenderer{size: 100}
	artifacts := &memArtifactStore{}
	g := newTestGenerator(renderer, artifacts, nil)

	cart := testCart("BNCLGU80A01H501B",
		&CartPayment{BizEventID: "evt-1", DebtorFiscalCode: "RSSMRA80A01H501U"},
		&CartPayment{BizEventID: "evt-2", DebtorFiscalCode: "VRDNNA80A41H501Q"},
	)
	events := cartEvents("evt-1", "evt-2")
	events[1].Debtor = &Party{
		FullName:                    "Anna Verdi",
		EntityUniqueIdentifierValue: "VRDNNA80A41H501Q",
	}

	gen := g.GenerateCartReceipts(context.Background(), cart, events, t.TempDir())

	require.NotNil(t, gen.Payer)
	assert.Equal(t, OutcomeSuccess, gen.Payer.Kind)
	require.Len(t, gen.Debtors, 2)
	assert.Equal(t, OutcomeSuccess, gen.Debtors["evt-1"].Kind)
	assert.Equal(t, OutcomeSuccess, gen.Debtors["evt-2"].Kind)

	require.Len(t, artifacts.names, 3)
	assert.Contains(t, artifacts.names[0], "pagopa-ricevuta-carrello-")
	assert.Contains(t, artifacts.names[0], "-tx-0001-p")
	assert.Contains(t, artifacts.names[1], "-evt-1-d")
	assert.Contains(t, artifacts.names[2], "-evt-2-d")
}

func TestGenerator_GenerateCartReceipts_SkipsAnonymousAndPayerDebtors(t *testing.T) {
	renderer := &stubRenderer{size: 100}
	g := newTestGenerator(renderer, &memArtifactStore{}, nil)

	cart := testCart("BNCLGU80A01H501B",
		&CartPayment{BizEventID: "evt-1", DebtorFiscalCode: AnonymousTaxCode},
		&CartPayment{BizEventID: "evt-2", DebtorFiscalCode: "BNCLGU80A01H501B"},
		&CartPayment{BizEventID: "evt-3", DebtorFiscalCode: "RSSMRA80A01H501U"},
	)
	events := cartEvents("evt-1", "evt-2", "evt-3")

	gen := g.GenerateCartReceipts(context.Background(), cart, events, t.TempDir())

	require.Len(t, gen.Debtors, 1, "anonymous debtors and the payer's own payments get no copy")
	assert.Contains(t, gen.Debtors, "evt-3")
	assert.Equal(t, 2, renderer.calls, "payer copy plus one debtor copy")
}

func TestGenerator_GenerateCartReceipts_NoPayer(t *testing.T) {
	renderer := &stubRenderer{size: 100}
	g := newTestGenerator(renderer, &memArtifactStore{}, nil)

	cart := testCart("",
		&CartPayment{BizEventID: "evt-1", DebtorFiscalCode: "RSSMRA80A01H501U"},
	)
	gen := g.GenerateCartReceipts(context.Background(), cart, cartEvents("evt-1"), t.TempDir())

	assert.Nil(t, gen.Payer)
	require.Len(t, gen.Debtors, 1)
	assert.Equal(t, OutcomeSuccess, gen.Debtors["evt-1"].Kind)
}

func TestGenerator_GenerateCartReceipts_AlreadyProduced(t *testing.T) {
	renderer := &stubRenderer{size: 100}
	g := newTestGenerator(renderer, &memArtifactStore{}, nil)

	cart := testCart("BNCLGU80A01H501B",
		&CartPayment{
			BizEventID:       "evt-1",
			DebtorFiscalCode: "RSSMRA80A01H501U",
			MdAttach:         &ReceiptMetadata{Name: "old", URL: "u"},
		},
	)
	cart.Payload.MdAttachPayer = &ReceiptMetadata{Name: "old-p", URL: "u"}

	gen := g.GenerateCartReceipts(context.Background(), cart, cartEvents("evt-1"), t.TempDir())

	assert.Equal(t, OutcomeAlreadyProduced, gen.Payer.Kind)
	assert.Equal(t, OutcomeAlreadyProduced, gen.Debtors["evt-1"].Kind)
	assert.Equal(t, 0, renderer.calls)
}

func TestGenerator_GenerateCartReceipts_MissingBizEvent(t *testing.T) {
	renderer := &stubRenderer{size: 100}
	g := newTestGenerator(renderer, &memArtifactStore{}, nil)

	cart := testCart("",
		&CartPayment{BizEventID: "evt-missing", DebtorFiscalCode: "RSSMRA80A01H501U"},
	)
	gen := g.GenerateCartReceipts(context.Background(), cart, cartEvents("evt-1"), t.TempDir())

	outcome := gen.Debtors["evt-missing"]
	require.NotNil(t, outcome)
	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Equal(t, CodeInvalidReceipt, outcome.Code)
}
