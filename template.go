package receiptgen

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	refTypeNotice = "codiceAvviso"
	refTypeIUV    = "IUV"
)

var remittanceTextPattern = regexp.MustCompile(`/TXT/(.*)`)

// TemplateError reports a mandatory template field that could not be filled
// from the source event. It always maps to CodeTemplateError: the event will
// never yield a better value on retry.
type TemplateError struct {
	Field string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template data mapping failed: missing mandatory field %s", e.Field)
}

// ReceiptTemplate is the JSON document posted to the PDF engine alongside the
// layout. Field names follow the engine contract.
type ReceiptTemplate struct {
	Transaction TemplateTransaction `json:"transaction"`
	User        *TemplateUser       `json:"user,omitempty"`
	Cart        TemplateCart        `json:"cart"`
}

type TemplateTransaction struct {
	ID                string                `json:"id"`
	Timestamp         string                `json:"timestamp"`
	Amount            string                `json:"amount"`
	PSP               TemplatePSP           `json:"psp"`
	RRN               string                `json:"rrn"`
	PaymentMethod     TemplatePaymentMethod `json:"paymentMethod"`
	AuthCode          string                `json:"authCode,omitempty"`
	RequestedByDebtor bool                  `json:"requestedByDebtor"`
}

type TemplatePSP struct {
	Name string `json:"name"`
	Fee  string `json:"fee,omitempty"`
}

type TemplatePaymentMethod struct {
	Name          string `json:"name,omitempty"`
	AccountHolder string `json:"accountHolder,omitempty"`
}

type TemplateUser struct {
	FullName string `json:"fullName"`
	TaxCode  string `json:"taxCode"`
}

type TemplateCart struct {
	Items         []TemplateItem `json:"items"`
	AmountPartial string         `json:"amountPartial"`
}

type TemplateItem struct {
	RefNumber TemplateRefNumber `json:"refNumber"`
	Debtor    TemplateDebtor    `json:"debtor"`
	Payee     TemplatePayee     `json:"payee"`
	Subject   string            `json:"subject"`
	Amount    string            `json:"amount"`
}

type TemplateRefNumber struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type TemplateDebtor struct {
	FullName string `json:"fullName,omitempty"`
	TaxCode  string `json:"taxCode"`
}

type TemplatePayee struct {
	Name    string `json:"name,omitempty"`
	TaxCode string `json:"taxCode"`
}

// TemplateBuilder maps biz-events to renderer template documents. A partial
// template drops the user block and marks the transaction as requested by the
// debtor, so the payer identity never reaches the debtor copy.
type TemplateBuilder struct {
	cfg *Config
}

func NewTemplateBuilder(cfg *Config) *TemplateBuilder {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &TemplateBuilder{cfg: cfg}
}

// BuildReceipt builds the template for a single-payment receipt.
func (b *TemplateBuilder) BuildReceipt(event *BizEvent, partial bool) (*ReceiptTemplate, error) {
	tx, err := b.buildTransaction(event, partial)
	if err != nil {
		return nil, err
	}
	item, err := b.buildItem(event)
	if err != nil {
		return nil, err
	}
	tpl := &ReceiptTemplate{
		Transaction: *tx,
		Cart: TemplateCart{
			Items:         []TemplateItem{*item},
			AmountPartial: item.Amount,
		},
	}
	if !partial {
		user, err := buildUser(event)
		if err != nil {
			return nil, err
		}
		tpl.User = user
	}
	return tpl, nil
}

// BuildCart builds the template for a multi-payment transaction. The payer
// copy carries every payment; a debtor copy carries only the payments owed by
// that tax code.
func (b *TemplateBuilder) BuildCart(events []BizEvent, partial bool, debtorTaxCode string) (*ReceiptTemplate, error) {
	if len(events) == 0 {
		return nil, &TemplateError{Field: "cart.items"}
	}
	tx, err := b.buildTransaction(&events[0], partial)
	if err != nil {
		return nil, err
	}

	var items []TemplateItem
	total := decimal.Zero
	for i := range events {
		ev := &events[i]
		if partial && debtorTaxCode != "" && debtorTaxCode != debtorIdentifier(ev) {
			continue
		}
		item, err := b.buildItem(ev)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
		amount, err := eventItemAmount(ev)
		if err != nil {
			return nil, err
		}
		total = total.Add(amount)
	}
	if len(items) == 0 {
		return nil, &TemplateError{Field: "cart.items"}
	}

	tpl := &ReceiptTemplate{
		Transaction: *tx,
		Cart: TemplateCart{
			Items:         items,
			AmountPartial: formatEuro(total),
		},
	}
	if !partial {
		user, err := buildUser(&events[0])
		if err != nil {
			return nil, err
		}
		tpl.User = user
	}
	return tpl, nil
}

func (b *TemplateBuilder) buildTransaction(event *BizEvent, partial bool) (*TemplateTransaction, error) {
	id, err := transactionReference(event)
	if err != nil {
		return nil, err
	}
	timestamp, err := transactionTimestamp(event)
	if err != nil {
		return nil, err
	}
	amount, err := transactionAmount(event)
	if err != nil {
		return nil, err
	}
	psp, err := transactionPSP(event)
	if err != nil {
		return nil, err
	}
	rrn, err := transactionRRN(event)
	if err != nil {
		return nil, err
	}
	return &TemplateTransaction{
		ID:                id,
		Timestamp:         timestamp,
		Amount:            amount,
		PSP:               *psp,
		RRN:               rrn,
		PaymentMethod:     paymentMethod(event),
		AuthCode:          authCode(event),
		RequestedByDebtor: partial,
	}, nil
}

func (b *TemplateBuilder) buildItem(event *BizEvent) (*TemplateItem, error) {
	refType, refValue, err := refNumber(event)
	if err != nil {
		return nil, err
	}
	subject := b.ItemSubject(event)
	if subject == "" {
		return nil, &TemplateError{Field: "cart.item.subject"}
	}
	if event.Debtor == nil || event.Debtor.EntityUniqueIdentifierValue == "" {
		return nil, &TemplateError{Field: "cart.item.debtor.taxCode"}
	}
	if event.Creditor == nil || event.Creditor.CompanyName == "" {
		return nil, &TemplateError{Field: "cart.item.payee.taxCode"}
	}
	amount, err := eventItemAmount(event)
	if err != nil {
		return nil, err
	}
	return &TemplateItem{
		RefNumber: TemplateRefNumber{Type: refType, Value: refValue},
		Debtor: TemplateDebtor{
			FullName: event.Debtor.FullName,
			TaxCode:  event.Debtor.EntityUniqueIdentifierValue,
		},
		Payee: TemplatePayee{
			Name:    event.Creditor.IDPA,
			TaxCode: event.Creditor.CompanyName,
		},
		Subject: subject,
		Amount:  formatEuro(amount),
	}, nil
}

// ItemSubject resolves the payment subject line: the remittance information
// unless it is on the unwanted-text denylist, otherwise the remittance of the
// largest transfer with the `/TXT/` wrapper stripped.
func (b *TemplateBuilder) ItemSubject(event *BizEvent) string {
	if event.PaymentInfo != nil && event.PaymentInfo.RemittanceInformation != "" &&
		!contains(b.cfg.UnwantedRemittanceInfo, strings.ToLower(event.PaymentInfo.RemittanceInformation)) {
		return event.PaymentInfo.RemittanceInformation
	}
	best := decimal.Zero
	var subject string
	for _, transfer := range event.TransferList {
		amount, err := decimal.NewFromString(transfer.Amount)
		if err != nil {
			continue
		}
		if best.LessThan(amount) {
			best = amount
			subject = transfer.RemittanceInformation
		}
	}
	if m := remittanceTextPattern.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	return subject
}

func buildUser(event *BizEvent) (*TemplateUser, error) {
	if event.Payer == nil || event.Payer.FullName == "" {
		return nil, &TemplateError{Field: "user.fullName"}
	}
	if event.Payer.EntityUniqueIdentifierValue == "" {
		return nil, &TemplateError{Field: "user.taxCode"}
	}
	return &TemplateUser{
		FullName: event.Payer.FullName,
		TaxCode:  event.Payer.EntityUniqueIdentifierValue,
	}, nil
}

func transactionReference(event *BizEvent) (string, error) {
	if details := event.TransactionDetails; details != nil && details.Transaction != nil && details.Transaction.TransactionID != "" {
		return details.Transaction.TransactionID, nil
	}
	if event.PaymentInfo != nil && event.PaymentInfo.IUR != "" {
		return event.PaymentInfo.IUR, nil
	}
	return "", &TemplateError{Field: "transaction.id"}
}

func transactionTimestamp(event *BizEvent) (string, error) {
	if details := event.TransactionDetails; details != nil && details.Transaction != nil && details.Transaction.CreationDate != "" {
		if t, err := time.Parse(time.RFC3339, details.Transaction.CreationDate); err == nil {
			return t.Format("02/01/2006, 15:04:05"), nil
		}
	}
	if event.PaymentInfo != nil && event.PaymentInfo.PaymentDateTime != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", event.PaymentInfo.PaymentDateTime); err == nil {
			return t.Format("02/01/2006, 15:04:05"), nil
		}
	}
	return "", &TemplateError{Field: "transaction.timestamp"}
}

func transactionAmount(event *BizEvent) (string, error) {
	if details := event.TransactionDetails; details != nil && details.Transaction != nil && details.Transaction.GrandTotal != 0 {
		return formatEuro(euroCents(details.Transaction.GrandTotal)), nil
	}
	if event.PaymentInfo != nil && event.PaymentInfo.Amount != "" {
		amount, err := decimal.NewFromString(event.PaymentInfo.Amount)
		if err == nil {
			return formatEuro(amount), nil
		}
	}
	return "", &TemplateError{Field: "transaction.amount"}
}

func transactionRRN(event *BizEvent) (string, error) {
	if details := event.TransactionDetails; details != nil && details.Transaction != nil && details.Transaction.RRN != "" {
		return details.Transaction.RRN, nil
	}
	if event.PaymentInfo != nil && event.PaymentInfo.IUR != "" {
		return event.PaymentInfo.IUR, nil
	}
	return "", &TemplateError{Field: "transaction.rrn"}
}

func transactionPSP(event *BizEvent) (*TemplatePSP, error) {
	details := event.TransactionDetails
	if details == nil || details.Transaction == nil || details.Transaction.PSP == nil ||
		details.Transaction.PSP.BusinessName == "" {
		return nil, &TemplateError{Field: "transaction.psp.name"}
	}
	psp := &TemplatePSP{Name: details.Transaction.PSP.BusinessName}
	if details.Transaction.Fee != 0 {
		psp.Fee = formatEuro(euroCents(details.Transaction.Fee))
	}
	return psp, nil
}

func paymentMethod(event *BizEvent) TemplatePaymentMethod {
	var method TemplatePaymentMethod
	if details := event.TransactionDetails; details != nil && details.Info != nil {
		method.Name = details.Info.PaymentMethodName
		if method.Name == "" {
			method.Name = details.Info.Brand
		}
	}
	if event.Payer != nil {
		method.AccountHolder = event.Payer.FullName
	}
	return method
}

func authCode(event *BizEvent) string {
	if details := event.TransactionDetails; details != nil && details.Transaction != nil {
		return details.Transaction.NumAut
	}
	return ""
}

func refNumber(event *BizEvent) (string, string, error) {
	pos := event.DebtorPosition
	if pos == nil {
		return "", "", &TemplateError{Field: "cart.item.refNumber.type"}
	}
	switch pos.ModelType {
	case "1":
		if pos.NoticeNumber == "" {
			return "", "", &TemplateError{Field: "cart.item.refNumber.value"}
		}
		return refTypeNotice, pos.NoticeNumber, nil
	case "2":
		if pos.IUV == "" {
			return "", "", &TemplateError{Field: "cart.item.refNumber.value"}
		}
		return refTypeIUV, pos.IUV, nil
	default:
		return "", "", &TemplateError{Field: "cart.item.refNumber.type"}
	}
}

func eventItemAmount(event *BizEvent) (decimal.Decimal, error) {
	if event.PaymentInfo == nil || event.PaymentInfo.Amount == "" {
		return decimal.Zero, &TemplateError{Field: "cart.item.amount"}
	}
	amount, err := decimal.NewFromString(event.PaymentInfo.Amount)
	if err != nil {
		return decimal.Zero, &TemplateError{Field: "cart.item.amount"}
	}
	return amount, nil
}

// debtorIdentifier returns the debtor tax code or the empty string.
func debtorIdentifier(event *BizEvent) string {
	if event.Debtor == nil {
		return ""
	}
	return event.Debtor.EntityUniqueIdentifierValue
}

// formatEuro renders a decimal amount with two fraction digits and a comma
// separator.
func formatEuro(amount decimal.Decimal) string {
	return strings.Replace(amount.StringFixed(2), ".", ",", 1)
}
