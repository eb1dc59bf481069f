package receiptgen

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// BizEventStatusDone is the only terminal event status eligible for generation.
const BizEventStatusDone = "DONE"

// BizEvent is one payment-transaction notification, the unit ingested from
// the upstream queue. Field names mirror the wire format.
type BizEvent struct {
	ID                   string              `json:"id"`
	Version              string              `json:"version,omitempty"`
	EventStatus          string              `json:"eventStatus,omitempty"`
	AttemptedPoisonRetry bool                `json:"attemptedPoisonRetry,omitempty"`
	Debtor               *Party              `json:"debtor,omitempty"`
	Payer                *Party              `json:"payer,omitempty"`
	Creditor             *Creditor           `json:"creditor,omitempty"`
	DebtorPosition       *DebtorPosition     `json:"debtorPosition,omitempty"`
	PaymentInfo          *PaymentInfo        `json:"paymentInfo,omitempty"`
	TransactionDetails   *TransactionDetails `json:"transactionDetails,omitempty"`
	TransferList         []Transfer          `json:"transferList,omitempty"`
}

type Party struct {
	FullName                    string `json:"fullName,omitempty"`
	EntityUniqueIdentifierValue string `json:"entityUniqueIdentifierValue,omitempty"`
}

type Creditor struct {
	CompanyName string `json:"companyName,omitempty"`
	IDPA        string `json:"idPA,omitempty"`
}

type DebtorPosition struct {
	ModelType    string `json:"modelType,omitempty"`
	IUV          string `json:"iuv,omitempty"`
	NoticeNumber string `json:"noticeNumber,omitempty"`
}

type PaymentInfo struct {
	PaymentDateTime       string `json:"paymentDateTime,omitempty"`
	Amount                string `json:"amount,omitempty"`
	Fee                   string `json:"fee,omitempty"`
	TotalNotice           string `json:"totalNotice,omitempty"`
	RemittanceInformation string `json:"remittanceInformation,omitempty"`
	IUR                   string `json:"IUR,omitempty"`
}

type TransactionDetails struct {
	User        *TransactionUser `json:"user,omitempty"`
	Transaction *Transaction     `json:"transaction,omitempty"`
	Info        *TransactionInfo `json:"info,omitempty"`
}

type TransactionUser struct {
	Type       string `json:"type,omitempty"`
	FiscalCode string `json:"fiscalCode,omitempty"`
	Name       string `json:"name,omitempty"`
	Surname    string `json:"surname,omitempty"`
}

// UserTypeRegistered identifies an authenticated, registered payer.
const UserTypeRegistered = "REGISTERED"

type Transaction struct {
	TransactionID string          `json:"transactionId,omitempty"`
	GrandTotal    int64           `json:"grandTotal,omitempty"`
	Amount        int64           `json:"amount,omitempty"`
	Fee           int64           `json:"fee,omitempty"`
	RRN           string          `json:"rrn,omitempty"`
	NumAut        string          `json:"numAut,omitempty"`
	CreationDate  string          `json:"creationDate,omitempty"`
	Origin        string          `json:"origin,omitempty"`
	PSP           *TransactionPSP `json:"psp,omitempty"`
}

type TransactionPSP struct {
	BusinessName string `json:"businessName,omitempty"`
}

type TransactionInfo struct {
	ClientID          string `json:"clientId,omitempty"`
	Brand             string `json:"brand,omitempty"`
	PaymentMethodName string `json:"paymentMethodName,omitempty"`
}

type Transfer struct {
	Amount                string `json:"amount,omitempty"`
	RemittanceInformation string `json:"remittanceInformation,omitempty"`
}

// DecodeBizEventMessage parses a queue payload into its biz-events. The
// payload is either plain JSON (a bare event object or an array of events) or
// the base64 encoding of one, which is how messages are re-enqueued.
func DecodeBizEventMessage(raw []byte) ([]BizEvent, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty biz-event message")
	}

	if data[0] != '[' && data[0] != '{' {
		decoded, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("biz-event message is neither JSON nor base64: %w", err)
		}
		data = bytes.TrimSpace(decoded)
		if len(data) == 0 {
			return nil, fmt.Errorf("empty biz-event message")
		}
	}

	if data[0] == '{' {
		var event BizEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to parse biz-event: %w", err)
		}
		return []BizEvent{event}, nil
	}

	var events []BizEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse biz-event list: %w", err)
	}
	return events, nil
}

// EncodeBizEventMessage serializes events as the base64-encoded JSON array
// expected by the work queue.
func EncodeBizEventMessage(events []BizEvent) ([]byte, error) {
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal biz-event list: %w", err)
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	return encoded, nil
}

// ReceiptEventReference resolves the work-item id a biz-event belongs to: the
// shared transaction id for multi-notice carts, the event's own id otherwise.
func ReceiptEventReference(event *BizEvent, multiItem bool) string {
	if event == nil {
		return ""
	}
	if multiItem && event.TransactionDetails != nil && event.TransactionDetails.Transaction != nil {
		return event.TransactionDetails.Transaction.TransactionID
	}
	return event.ID
}

// TransactionID returns the cart/transaction id carried by the event, if any.
func (e *BizEvent) TransactionID() string {
	if e.TransactionDetails == nil || e.TransactionDetails.Transaction == nil {
		return ""
	}
	return e.TransactionDetails.Transaction.TransactionID
}
