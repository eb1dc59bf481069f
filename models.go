package receiptgen

import "time"

// Status is the lifecycle state of a work item (Receipt or CartForReceipt).
type Status string

const (
	StatusInserted   Status = "INSERTED"
	StatusRetry      Status = "RETRY"
	StatusGenerated  Status = "GENERATED"
	StatusFailed     Status = "FAILED"
	StatusIONotified Status = "IO_NOTIFIED"
	StatusToReview   Status = "TO_REVIEW"
)

// statusTransitions is the closed transition table shared by receipts and carts.
// FAILED and IO_NOTIFIED are terminal.
var statusTransitions = map[Status][]Status{
	StatusInserted:  {StatusGenerated, StatusRetry, StatusFailed, StatusToReview},
	StatusRetry:     {StatusGenerated, StatusRetry, StatusFailed, StatusToReview},
	StatusGenerated: {StatusIONotified, StatusToReview},
	StatusToReview:  {StatusInserted},
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// Startable reports whether a work item in this status is eligible for generation.
func (s Status) Startable() bool {
	return s == StatusInserted || s == StatusRetry
}

// AnonymousTaxCode marks a debtor whose identity could not be established.
// No artifact is ever produced for it.
const AnonymousTaxCode = "ANONIMO"

// ReceiptMetadata is the stored reference to one generated PDF artifact.
type ReceiptMetadata struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Present reports whether the artifact has already been produced and stored.
func (m *ReceiptMetadata) Present() bool {
	return m != nil && m.Name != "" && m.URL != ""
}

// ReasonError is a typed, role-scoped failure recorded on a work item.
type ReasonError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CartItem is the cart line carried inside a receipt's event data.
type CartItem struct {
	PayeeName string `json:"payeeName"`
	Subject   string `json:"subject"`
}

// EventData is the validated, tokenized slice of a biz-event kept on a Receipt.
type EventData struct {
	DebtorFiscalCode        string     `json:"debtorFiscalCode"`
	PayerFiscalCode         string     `json:"payerFiscalCode,omitempty"`
	Amount                  string     `json:"amount,omitempty"`
	TransactionCreationDate string     `json:"transactionCreationDate,omitempty"`
	Cart                    []CartItem `json:"cart,omitempty"`
}

// Receipt is the work item tracking PDF generation for a single biz-event.
// Up to two artifacts are produced: one for the debtor, one for the payer.
type Receipt struct {
	ID             string           `json:"id"`
	EventID        string           `json:"eventId"`
	Status         Status           `json:"status"`
	EventData      *EventData       `json:"eventData,omitempty"`
	MdAttach       *ReceiptMetadata `json:"mdAttach,omitempty"`
	MdAttachPayer  *ReceiptMetadata `json:"mdAttachPayer,omitempty"`
	ReasonErr      *ReasonError     `json:"reasonErr,omitempty"`
	ReasonErrPayer *ReasonError     `json:"reasonErrPayer,omitempty"`
	NumRetry       int              `json:"numRetry"`
	InsertedAt     int64            `json:"inserted_at,omitempty"`
	GeneratedAt    int64            `json:"generated_at,omitempty"`
	NotifiedAt     int64            `json:"notified_at,omitempty"`
}

// CartPayment is one member of a cart, keyed by its source biz-event id.
type CartPayment struct {
	BizEventID       string           `json:"bizEventId"`
	DebtorFiscalCode string           `json:"debtorFiscalCode"`
	Amount           string           `json:"amount,omitempty"`
	PayeeName        string           `json:"payeeName,omitempty"`
	Subject          string           `json:"subject,omitempty"`
	MdAttach         *ReceiptMetadata `json:"mdAttach,omitempty"`
	ReasonErr        *ReasonError     `json:"reasonErr,omitempty"`
}

// CartPayload holds the cart's shared payer data and its member payments.
type CartPayload struct {
	PayerFiscalCode         string           `json:"payerFiscalCode,omitempty"`
	TotalNotice             int              `json:"totalNotice"`
	TotalAmount             string           `json:"totalAmount,omitempty"`
	TransactionCreationDate string           `json:"transactionCreationDate,omitempty"`
	MdAttachPayer           *ReceiptMetadata `json:"mdAttachPayer,omitempty"`
	ReasonErrPayer          *ReasonError     `json:"reasonErrPayer,omitempty"`
	Cart                    []*CartPayment   `json:"cart"`
}

// CartForReceipt is the work item tracking PDF generation for N biz-events
// sharing one transaction id: one payer artifact plus per-event debtor artifacts.
type CartForReceipt struct {
	ID          string       `json:"id"`
	EventID     string       `json:"eventId"`
	Version     string       `json:"version,omitempty"`
	Status      Status       `json:"status"`
	Payload     *CartPayload `json:"payload,omitempty"`
	ReasonErr   *ReasonError `json:"reasonErr,omitempty"`
	NumRetry    int          `json:"numRetry"`
	InsertedAt  int64        `json:"inserted_at,omitempty"`
	GeneratedAt int64        `json:"generated_at,omitempty"`
}

// PoisonStatus is the review lifecycle of an undeliverable message.
type PoisonStatus string

const (
	PoisonStatusToReview PoisonStatus = "TO_REVIEW"
	PoisonStatusReviewed PoisonStatus = "REVIEWED"
	PoisonStatusRequeued PoisonStatus = "REQUEUED"
)

// PoisonRecord is an encrypted snapshot of a message that failed automatic
// delivery and retry, parked for human review. WorkItemID correlates back to
// the receipt's event id or the cart's transaction id; it is empty only when
// the raw payload itself failed to parse.
type PoisonRecord struct {
	ID             string       `json:"id"`
	WorkItemID     string       `json:"bizEventId,omitempty"`
	Status         PoisonStatus `json:"status"`
	MessagePayload string       `json:"messagePayload,omitempty"`
	MessageError   string       `json:"messageError,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}
