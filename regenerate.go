package receiptgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Tokenizer swaps a fiscal code for an opaque token before it is persisted
// on a work item.
type Tokenizer interface {
	Tokenize(ctx context.Context, fiscalCode string) (string, error)
}

// NopTokenizer returns fiscal codes unchanged.
type NopTokenizer struct{}

func (NopTokenizer) Tokenize(_ context.Context, fiscalCode string) (string, error) {
	return fiscalCode, nil
}

// Regenerator is the helpdesk entry point: it re-runs generation for a
// single event or a whole cart on demand, rebuilding the work item from the
// source biz-events when the store has lost it.
type Regenerator struct {
	store      Store
	generator  *Generator
	reconciler *Reconciler
	validator  *Validator
	builder    *TemplateBuilder
	tokenizer  Tokenizer
	cfg        *Config
	logger     *zap.Logger
}

func NewRegenerator(store Store, generator *Generator, reconciler *Reconciler, validator *Validator, builder *TemplateBuilder, tokenizer Tokenizer, cfg *Config, logger *zap.Logger) *Regenerator {
	if tokenizer == nil {
		tokenizer = NopTokenizer{}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Regenerator{
		store:      store,
		generator:  generator,
		reconciler: reconciler,
		validator:  validator,
		builder:    builder,
		tokenizer:  tokenizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// RegenerateReceipt re-runs generation for the given event id synchronously
// and returns the persisted receipt. The source biz-event must still exist
// and be valid.
func (r *Regenerator) RegenerateReceipt(ctx context.Context, eventID string) (*Receipt, error) {
	event, err := r.store.GetBizEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading biz-event %s: %w", eventID, err)
	}
	if err := r.validator.ValidateBizEvent(event); err != nil {
		return nil, err
	}

	receipt, err := r.store.GetReceipt(ctx, eventID)
	if errors.Is(err, ErrNotFound) {
		receipt, err = r.buildReceipt(ctx, event)
	}
	if err != nil {
		return nil, err
	}
	receipt.Status = StatusInserted

	workDir, err := os.MkdirTemp(r.cfg.WorkingDir, "regen-")
	if err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	generation := r.generator.GenerateReceipts(ctx, receipt, event, workDir)
	ok, _ := ApplyReceiptOutcomes(receipt, generation)
	if ok {
		receipt.Status = StatusGenerated
		receipt.GeneratedAt = time.Now().Unix()
	}
	if saveErr := r.store.SaveReceipt(ctx, receipt); saveErr != nil {
		return nil, saveErr
	}
	if !ok {
		return receipt, fmt.Errorf("regeneration failed for event %s", eventID)
	}
	return receipt, nil
}

// RegenerateCart re-runs generation for every payment of the transaction.
func (r *Regenerator) RegenerateCart(ctx context.Context, transactionID string) (*CartForReceipt, error) {
	events, err := r.store.GetBizEventsByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("loading biz-events for transaction %s: %w", transactionID, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, ErrNotFound)
	}
	for i := range events {
		if err := r.validator.ValidateBizEvent(&events[i]); err != nil {
			return nil, err
		}
	}

	cart, err := r.store.GetCart(ctx, transactionID)
	if errors.Is(err, ErrNotFound) {
		cart, err = r.buildCart(ctx, transactionID, events)
	}
	if err != nil {
		return nil, err
	}
	cart.Status = StatusInserted

	workDir, err := os.MkdirTemp(r.cfg.WorkingDir, "regen-")
	if err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	generation := r.generator.GenerateCartReceipts(ctx, cart, events, workDir)
	ok, _ := ApplyCartOutcomes(cart, generation)
	if ok {
		cart.Status = StatusGenerated
		cart.GeneratedAt = time.Now().Unix()
	}
	if saveErr := r.store.SaveCart(ctx, cart); saveErr != nil {
		return nil, saveErr
	}
	if !ok {
		return cart, fmt.Errorf("regeneration failed for transaction %s", transactionID)
	}
	return cart, nil
}

// buildReceipt rebuilds a lost receipt work item from its source event.
func (r *Regenerator) buildReceipt(ctx context.Context, event *BizEvent) (*Receipt, error) {
	debtorCF, err := r.tokenizeDebtor(ctx, event)
	if err != nil {
		return nil, err
	}
	payerCF, err := r.tokenizePayer(ctx, event)
	if err != nil {
		return nil, err
	}

	eventData := &EventData{
		DebtorFiscalCode:        debtorCF,
		PayerFiscalCode:         payerCF,
		TransactionCreationDate: transactionCreationDate(event),
		Cart: []CartItem{{
			PayeeName: payeeName(event),
			Subject:   r.builder.ItemSubject(event),
		}},
	}
	if amount := eventAmount(event); !amount.IsZero() {
		eventData.Amount = formatEuro(amount)
	}

	return &Receipt{
		ID:         event.ID + "-" + uuid.NewString(),
		EventID:    event.ID,
		Status:     StatusInserted,
		EventData:  eventData,
		InsertedAt: time.Now().Unix(),
	}, nil
}

// buildCart rebuilds a lost cart work item from the transaction's events.
func (r *Regenerator) buildCart(ctx context.Context, transactionID string, events []BizEvent) (*CartForReceipt, error) {
	payments := make([]*CartPayment, 0, len(events))
	for i := range events {
		event := &events[i]
		debtorCF, err := r.tokenizeDebtor(ctx, event)
		if err != nil {
			return nil, err
		}
		payment := &CartPayment{
			BizEventID:       event.ID,
			DebtorFiscalCode: debtorCF,
			PayeeName:        payeeName(event),
			Subject:          r.builder.ItemSubject(event),
		}
		if event.PaymentInfo != nil && event.PaymentInfo.Amount != "" {
			if amount, err := decimal.NewFromString(event.PaymentInfo.Amount); err == nil {
				payment.Amount = formatEuro(amount)
			}
		}
		payments = append(payments, payment)
	}

	first := &events[0]
	payerCF, err := r.tokenizePayer(ctx, first)
	if err != nil {
		return nil, err
	}
	totalNotice, err := TotalNotice(first)
	if err != nil {
		return nil, err
	}

	payload := &CartPayload{
		PayerFiscalCode:         payerCF,
		TotalNotice:             totalNotice,
		TransactionCreationDate: transactionCreationDate(first),
		Cart:                    payments,
	}
	if amount := cartAmount(first); !amount.IsZero() {
		payload.TotalAmount = formatEuro(amount)
	}

	return &CartForReceipt{
		ID:         transactionID,
		EventID:    transactionID,
		Version:    "1",
		Status:     StatusInserted,
		Payload:    payload,
		InsertedAt: time.Now().Unix(),
	}, nil
}

func (r *Regenerator) tokenizeDebtor(ctx context.Context, event *BizEvent) (string, error) {
	if event.Debtor == nil || !IsValidFiscalCode(event.Debtor.EntityUniqueIdentifierValue) {
		return AnonymousTaxCode, nil
	}
	token, err := r.tokenizer.Tokenize(ctx, event.Debtor.EntityUniqueIdentifierValue)
	if err != nil {
		return "", fmt.Errorf("tokenizing debtor fiscal code: %w", err)
	}
	return token, nil
}

func (r *Regenerator) tokenizePayer(ctx context.Context, event *BizEvent) (string, error) {
	if !r.validator.IsValidChannelOrigin(event) {
		return "", nil
	}
	details := event.TransactionDetails
	if details != nil && details.User != nil && IsValidFiscalCode(details.User.FiscalCode) {
		token, err := r.tokenizer.Tokenize(ctx, details.User.FiscalCode)
		if err != nil {
			return "", fmt.Errorf("tokenizing payer fiscal code: %w", err)
		}
		return token, nil
	}
	if event.Payer != nil && IsValidFiscalCode(event.Payer.EntityUniqueIdentifierValue) {
		token, err := r.tokenizer.Tokenize(ctx, event.Payer.EntityUniqueIdentifierValue)
		if err != nil {
			return "", fmt.Errorf("tokenizing payer fiscal code: %w", err)
		}
		return token, nil
	}
	return "", nil
}

// eventAmount prefers the euro-cent grand total, falling back to the payment
// amount.
func eventAmount(event *BizEvent) decimal.Decimal {
	if details := event.TransactionDetails; details != nil && details.Transaction != nil && details.Transaction.GrandTotal != 0 {
		return euroCents(details.Transaction.GrandTotal)
	}
	if event.PaymentInfo != nil && event.PaymentInfo.Amount != "" {
		if amount, err := decimal.NewFromString(event.PaymentInfo.Amount); err == nil {
			return amount
		}
	}
	return decimal.Zero
}

// cartAmount is the grand total of the whole transaction.
func cartAmount(event *BizEvent) decimal.Decimal {
	if details := event.TransactionDetails; details != nil && details.Transaction != nil {
		return euroCents(details.Transaction.GrandTotal)
	}
	return decimal.Zero
}

func transactionCreationDate(event *BizEvent) string {
	if details := event.TransactionDetails; details != nil && details.Transaction != nil && details.Transaction.CreationDate != "" {
		return details.Transaction.CreationDate
	}
	if event.PaymentInfo != nil {
		return event.PaymentInfo.PaymentDateTime
	}
	return ""
}

func payeeName(event *BizEvent) string {
	if event.Creditor == nil {
		return ""
	}
	return event.Creditor.CompanyName
}
