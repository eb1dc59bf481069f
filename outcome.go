package receiptgen

import "net/http"

// Outcome codes. Render/template codes come from the upstream receipt error
// taxonomy; CodeTemplateError is the only one that is never retried.
const (
	CodeOK               = http.StatusOK
	CodeAlreadyCreated   = http.StatusAlreadyReported
	CodeInvalidReceipt   = http.StatusInternalServerError
	CodePDFEngineError   = 700
	CodeBlobStorageError = 901
	CodeTemplateError    = 903
)

// OutcomeKind tags the result of one artifact generation attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeAlreadyProduced
	OutcomeFailed
)

// Outcome is the result of one generation attempt for one role (debtor or
// payer). It is a value, never an error: only the reconciler decides
// work-item-level severity.
type Outcome struct {
	Kind    OutcomeKind
	Name    string
	URL     string
	Code    int
	Message string
}

func SuccessOutcome(name, url string) *Outcome {
	return &Outcome{Kind: OutcomeSuccess, Name: name, URL: url, Code: CodeOK}
}

func AlreadyProducedOutcome() *Outcome {
	return &Outcome{Kind: OutcomeAlreadyProduced, Code: CodeAlreadyCreated}
}

func FailedOutcome(code int, message string) *Outcome {
	return &Outcome{Kind: OutcomeFailed, Code: code, Message: message}
}

// Failed reports whether the attempt produced no artifact.
func (o *Outcome) Failed() bool {
	return o.Kind == OutcomeFailed
}

// Fatal reports whether the failure must never be retried: re-sending the
// same broken template cannot succeed.
func (o *Outcome) Fatal() bool {
	return o.Kind == OutcomeFailed && o.Code == CodeTemplateError
}

// Generation aggregates the per-role outcomes of one receipt generation run.
// A nil role pointer means that role was not required.
type Generation struct {
	Debtor *Outcome
	Payer  *Outcome
	// OnlyDebtor is set when the payer either is absent or matches the
	// debtor, so a single shared artifact covers both parties.
	OnlyDebtor bool
}

// CartGeneration aggregates the outcomes of one cart generation run: the
// shared payer artifact plus one debtor artifact per member biz-event id.
// Members skipped entirely (anonymous debtor, debtor equal to payer) have no
// entry in Debtors.
type CartGeneration struct {
	Payer   *Outcome
	Debtors map[string]*Outcome
}
