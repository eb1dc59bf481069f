package receiptgen

import (
	"context"
)

// GenerateCartReceipts produces the artifacts for a multi-payment
// transaction: one complete artifact for the payer covering every payment,
// plus one partial artifact per debtor. Payments owed by the payer or by an
// anonymous debtor get no debtor copy. Roles with an existing artifact are
// reported as already produced.
func (g *Generator) GenerateCartReceipts(ctx context.Context, cart *CartForReceipt, events []BizEvent, workDir string) *CartGeneration {
	generation := &CartGeneration{
		Debtors: make(map[string]*Outcome),
	}
	payload := cart.Payload
	payerCF := payload.PayerFiscalCode

	eventsByID := make(map[string]*BizEvent, len(events))
	for i := range events {
		eventsByID[events[i].ID] = &events[i]
	}

	if payerCF != "" {
		if payload.MdAttachPayer.Present() {
			generation.Payer = AlreadyProducedOutcome()
		} else {
			tpl, err := g.builder.BuildCart(events, false, "")
			if err != nil {
				generation.Payer = templateFailure(err)
			} else {
				name := artifactName(g.cfg.CartPrefix, cart.EventID, payerArtifactSuffix)
				generation.Payer = g.renderAndStore(ctx, tpl, name, workDir, cart.EventID)
			}
		}
	}

	for _, payment := range payload.Cart {
		if payment.DebtorFiscalCode == AnonymousTaxCode || payment.DebtorFiscalCode == payerCF {
			continue
		}
		if payment.MdAttach.Present() {
			generation.Debtors[payment.BizEventID] = AlreadyProducedOutcome()
			continue
		}
		event, ok := eventsByID[payment.BizEventID]
		if !ok {
			generation.Debtors[payment.BizEventID] = FailedOutcome(CodeInvalidReceipt,
				"cart payment has no matching biz-event")
			continue
		}
		// no debtor filter: the stored debtor code may be a token, and the
		// single matching event is passed in directly
		tpl, err := g.builder.BuildCart([]BizEvent{*event}, true, "")
		if err != nil {
			generation.Debtors[payment.BizEventID] = templateFailure(err)
			continue
		}
		name := artifactName(g.cfg.CartPrefix, payment.BizEventID, debtorArtifactSuffix)
		generation.Debtors[payment.BizEventID] = g.renderAndStore(ctx, tpl, name, workDir, payment.BizEventID)
	}

	return generation
}
