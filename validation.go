package receiptgen

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	fiscalCodePattern = regexp.MustCompile(`^[A-Z]{6}[0-9LMNPQRSTUV]{2}[ABCDEHLMPRST][0-9LMNPQRSTUV]{2}[A-Z][0-9LMNPQRSTUV]{3}[A-Z]$`)
	vatNumberPattern  = regexp.MustCompile(`^\d{11}$`)
)

// ecommerceChannels identify the checkout flows excluded by the e-commerce
// filter.
var ecommerceChannels = []string{"CHECKOUT", "CHECKOUT_CART"}

// IsValidFiscalCode reports whether the identifier matches the personal
// fiscal-code or VAT-number pattern. Validation is pattern-only; checksum
// digits are not verified.
func IsValidFiscalCode(fiscalCode string) bool {
	if fiscalCode == "" {
		return false
	}
	return fiscalCodePattern.MatchString(fiscalCode) || vatNumberPattern.MatchString(fiscalCode)
}

// Validator applies the biz-event usability rules: terminal status, at least
// one valid identity, channel-origin policy, legacy-cart heuristic.
type Validator struct {
	cfg *Config
}

func NewValidator(cfg *Config) *Validator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Validator{cfg: cfg}
}

// ValidateBizEvent returns nil when the event is usable for receipt
// generation, or a descriptive error naming the first violated rule.
func (v *Validator) ValidateBizEvent(event *BizEvent) error {
	if event == nil {
		return fmt.Errorf("biz-event is nil")
	}
	if event.EventStatus != BizEventStatusDone {
		return fmt.Errorf("biz-event %s is in invalid status %s", event.ID, event.EventStatus)
	}
	if !v.hasValidIdentity(event) {
		return fmt.Errorf("biz-event %s has no valid debtor or payer identifier", event.ID)
	}
	if v.cfg.EcommerceFilterEnabled && isEcommerceClient(event) {
		return fmt.Errorf("biz-event %s comes from e-commerce and the e-commerce filter is enabled", event.ID)
	}
	if !isCartMod1(event) {
		return fmt.Errorf("biz-event %s has an invalid amount or is a legacy cart element", event.ID)
	}
	return nil
}

func (v *Validator) hasValidIdentity(event *BizEvent) bool {
	if event.Debtor != nil && IsValidFiscalCode(event.Debtor.EntityUniqueIdentifierValue) {
		return true
	}
	if !v.IsValidChannelOrigin(event) {
		return false
	}
	details := event.TransactionDetails
	if details != nil && details.User != nil && IsValidFiscalCode(details.User.FiscalCode) {
		return true
	}
	return event.Payer != nil && IsValidFiscalCode(event.Payer.EntityUniqueIdentifierValue)
}

// IsValidChannelOrigin reports whether the payer identity on the event can be
// trusted: the channel must be on the authenticated allow-list, and checkout
// channels additionally require a registered user.
func (v *Validator) IsValidChannelOrigin(event *BizEvent) bool {
	details := event.TransactionDetails
	if details == nil {
		return false
	}

	var origin, clientID, userType string
	if details.Transaction != nil {
		origin = details.Transaction.Origin
	}
	if details.Info != nil {
		clientID = details.Info.ClientID
	}
	if details.User != nil {
		userType = details.User.Type
	}

	isAuthenticated := contains(v.cfg.AuthenticatedChannels, origin) || contains(v.cfg.AuthenticatedChannels, clientID)
	isCheckout := contains(ecommerceChannels, origin) || contains(ecommerceChannels, clientID)

	if isCheckout && userType != UserTypeRegistered {
		return false
	}
	return isAuthenticated
}

func isEcommerceClient(event *BizEvent) bool {
	return event.TransactionDetails != nil &&
		event.TransactionDetails.Info != nil &&
		contains(ecommerceChannels, event.TransactionDetails.Info.ClientID)
}

// isCartMod1 rejects legacy cart content: an event with no total-notice count
// is usable only when its payment amount equals the transaction amount.
func isCartMod1(event *BizEvent) bool {
	if event.PaymentInfo == nil || event.PaymentInfo.TotalNotice != "" {
		return true
	}
	if event.TransactionDetails == nil || event.TransactionDetails.Transaction == nil {
		return false
	}
	paymentAmount, err := decimal.NewFromString(event.PaymentInfo.Amount)
	if err != nil {
		return false
	}
	transactionAmount := euroCents(event.TransactionDetails.Transaction.Amount)
	return paymentAmount.Sub(transactionAmount).IsZero()
}

// TotalNotice returns the declared notice count, defaulting to one for
// single-item events.
func TotalNotice(event *BizEvent) (int, error) {
	if event.PaymentInfo == nil || event.PaymentInfo.TotalNotice == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(event.PaymentInfo.TotalNotice)
	if err != nil {
		return 0, fmt.Errorf("biz-event %s has an invalid total notice value %q", event.ID, event.PaymentInfo.TotalNotice)
	}
	return n, nil
}

// euroCents converts an integer euro-cent value into a decimal euro amount.
func euroCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
