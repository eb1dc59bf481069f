package receiptgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validBizEvent returns a fully populated event that passes validation and
// template building. Tests mutate the parts they care about.
func validBizEvent(id string) *BizEvent {
	return &BizEvent{
		ID:          id,
		EventStatus: BizEventStatusDone,
		Debtor: &Party{
			FullName:                    "Mario Rossi",
			EntityUniqueIdentifierValue: "RSSMRA80A01H501U",
		},
		Payer: &Party{
			FullName:                    "Luigi Bianchi",
			EntityUniqueIdentifierValue: "BNCLGU80A01H501B",
		},
		Creditor: &Creditor{
			CompanyName: "Comune di Milano",
			IDPA:        "c_f205",
		},
		DebtorPosition: &DebtorPosition{
			ModelType:    "1",
			NoticeNumber: "302001000000000001",
			IUV:          "02001000000000001",
		},
		PaymentInfo: &PaymentInfo{
			PaymentDateTime:       "2026-04-12T16:20:01",
			Amount:                "15.00",
			TotalNotice:           "1",
			RemittanceInformation: "TARI 2026",
			IUR:                   "iur-0001",
		},
		TransactionDetails: &TransactionDetails{
			User: &TransactionUser{
				Type:       UserTypeRegistered,
				FiscalCode: "BNCLGU80A01H501B",
			},
			Transaction: &Transaction{
				TransactionID: "tx-0001",
				GrandTotal:    1650,
				Amount:        1500,
				Fee:           150,
				RRN:           "rrn-0001",
				NumAut:        "auth-42",
				CreationDate:  "2026-04-12T16:20:01Z",
				Origin:        "IO",
				PSP:           &TransactionPSP{BusinessName: "Nexi"},
			},
			Info: &TransactionInfo{
				Brand:             "VISA",
				PaymentMethodName: "Carta di credito",
			},
		},
	}
}

func TestTemplateBuilder_BuildReceipt_Complete(t *testing.T) {
	b := NewTemplateBuilder(nil)

	tpl, err := b.BuildReceipt(validBizEvent("evt-1"), false)
	require.NoError(t, err)

	assert.Equal(t, "tx-0001", tpl.Transaction.ID)
	assert.Equal(t, "12/04/2026, 16:20:01", tpl.Transaction.Timestamp)
	assert.Equal(t, "16,50", tpl.Transaction.Amount)
	assert.Equal(t, "Nexi", tpl.Transaction.PSP.Name)
	assert.Equal(t, "1,50", tpl.Transaction.PSP.Fee)
	assert.Equal(t, "rrn-0001", tpl.Transaction.RRN)
	assert.Equal(t, "auth-42", tpl.Transaction.AuthCode)
	assert.Equal(t, "Carta di credito", tpl.Transaction.PaymentMethod.Name)
	assert.False(t, tpl.Transaction.RequestedByDebtor)

	require.NotNil(t, tpl.User)
	assert.Equal(t, "Luigi Bianchi", tpl.User.FullName)
	assert.Equal(t, "BNCLGU80A01H501B", tpl.User.TaxCode)

	require.Len(t, tpl.Cart.Items, 1)
	item := tpl.Cart.Items[0]
	assert.Equal(t, "codiceAvviso", item.RefNumber.Type)
	assert.Equal(t, "302001000000000001", item.RefNumber.Value)
	assert.Equal(t, "RSSMRA80A01H501U", item.Debtor.TaxCode)
	assert.Equal(t, "TARI 2026", item.Subject)
	assert.Equal(t, "15,00", item.Amount)
	assert.Equal(t, "15,00", tpl.Cart.AmountPartial)
}

func TestTemplateBuilder_BuildReceipt_Partial(t *testing.T) {
	b := NewTemplateBuilder(nil)

	tpl, err := b.BuildReceipt(validBizEvent("evt-1"), true)
	require.NoError(t, err)

	assert.Nil(t, tpl.User, "debtor copy must not carry the payer identity")
	assert.True(t, tpl.Transaction.RequestedByDebtor)
}

func TestTemplateBuilder_BuildReceipt_MissingMandatoryFields(t *testing.T) {
	b := NewTemplateBuilder(nil)

	t.Run("no psp", func(t *testing.T) {
		event := validBizEvent("evt-1")
		event.TransactionDetails.Transaction.PSP = nil
		_, err := b.BuildReceipt(event, false)
		var tplErr *TemplateError
		require.ErrorAs(t, err, &tplErr)
		assert.Equal(t, "transaction.psp.name", tplErr.Field)
	})

	t.Run("no timestamp anywhere", func(t *testing.T) {
		event := validBizEvent("evt-1")
		event.TransactionDetails.Transaction.CreationDate = ""
		event.PaymentInfo.PaymentDateTime = ""
		_, err := b.BuildReceipt(event, false)
		var tplErr *TemplateError
		require.ErrorAs(t, err, &tplErr)
		assert.Equal(t, "transaction.timestamp", tplErr.Field)
	})

	t.Run("unknown debtor position model", func(t *testing.T) {
		event := validBizEvent("evt-1")
		event.DebtorPosition.ModelType = "9"
		_, err := b.BuildReceipt(event, false)
		assert.Error(t, err)
	})

	t.Run("complete copy needs payer name", func(t *testing.T) {
		event := validBizEvent("evt-1")
		event.Payer.FullName = ""
		_, err := b.BuildReceipt(event, false)
		assert.Error(t, err)

		_, err = b.BuildReceipt(event, true)
		assert.NoError(t, err, "partial copy has no user block")
	})
}

func TestTemplateBuilder_RefNumberFromIUV(t *testing.T) {
	b := NewTemplateBuilder(nil)
	event := validBizEvent("evt-1")
	event.DebtorPosition.ModelType = "2"

	tpl, err := b.BuildReceipt(event, false)
	require.NoError(t, err)
	assert.Equal(t, "IUV", tpl.Cart.Items[0].RefNumber.Type)
	assert.Equal(t, "02001000000000001", tpl.Cart.Items[0].RefNumber.Value)
}

func TestTemplateBuilder_ItemSubject(t *testing.T) {
	b := NewTemplateBuilder(nil)

	t.Run("remittance information wins", func(t *testing.T) {
		event := validBizEvent("evt-1")
		assert.Equal(t, "TARI 2026", b.ItemSubject(event))
	})

	t.Run("unwanted remittance falls back to largest transfer", func(t *testing.T) {
		event := validBizEvent("evt-1")
		event.PaymentInfo.RemittanceInformation = "Pagamento BPAY"
		event.TransferList = []Transfer{
			{Amount: "5.00", RemittanceInformation: "small part"},
			{Amount: "10.00", RemittanceInformation: "/TXT/big part"},
		}
		assert.Equal(t, "big part", b.ItemSubject(event))
	})

	t.Run("transfer without txt wrapper", func(t *testing.T) {
		event := validBizEvent("evt-1")
		event.PaymentInfo.RemittanceInformation = ""
		event.TransferList = []Transfer{
			{Amount: "7.50", RemittanceInformation: "plain subject"},
		}
		assert.Equal(t, "plain subject", b.ItemSubject(event))
	})
}

func TestTemplateBuilder_BuildCart(t *testing.T) {
	b := NewTemplateBuilder(nil)

	first := validBizEvent("evt-1")
	second := validBizEvent("evt-2")
	second.Debtor = &Party{
		FullName:                    "Anna Verdi",
		EntityUniqueIdentifierValue: "VRDNNA80A41H501Q",
	}
	second.PaymentInfo.Amount = "5.50"
	events := []BizEvent{*first, *second}

	t.Run("payer copy carries every payment", func(t *testing.T) {
		tpl, err := b.BuildCart(events, false, "")
		require.NoError(t, err)
		require.NotNil(t, tpl.User)
		require.Len(t, tpl.Cart.Items, 2)
		assert.Equal(t, "20,50", tpl.Cart.AmountPartial)
	})

	t.Run("debtor copy keeps only that debtor's payments", func(t *testing.T) {
		tpl, err := b.BuildCart(events, true, "VRDNNA80A41H501Q")
		require.NoError(t, err)
		assert.Nil(t, tpl.User)
		require.Len(t, tpl.Cart.Items, 1)
		assert.Equal(t, "VRDNNA80A41H501Q", tpl.Cart.Items[0].Debtor.TaxCode)
		assert.Equal(t, "5,50", tpl.Cart.AmountPartial)
	})

	t.Run("debtor with no payments", func(t *testing.T) {
		_, err := b.BuildCart(events, true, "CCCCCC00C00C000C")
		assert.Error(t, err)
	})

	t.Run("no events", func(t *testing.T) {
		_, err := b.BuildCart(nil, false, "")
		assert.Error(t, err)
	})
}
