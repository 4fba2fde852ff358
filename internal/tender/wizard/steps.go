package wizard

import (
	"github.com/shopspring/decimal"

	"tender-workflow/internal/tender/requirement"
)

// BuildSteps computes the step list once, when the wizard opens.
//
// NOTE: with paymentOnZeroFee set (the default) PAYMENT is included when the
// application fee is ZERO and omitted when a fee is owed. This mirrors the
// behaviour of the deployed client and reads backwards: proof of payment would
// normally be expected when a fee is charged. It is kept pending product
// confirmation; wizard.payment_step_when_fee_zero=false selects the inverted
// rule.
func BuildSteps(applicationFee decimal.Decimal, paymentOnZeroFee bool) []requirement.Stage {
	includePayment := applicationFee.IsZero() == paymentOnZeroFee

	steps := []requirement.Stage{requirement.StageDetails}
	if includePayment {
		steps = append(steps, requirement.StagePayment)
	}
	steps = append(steps, requirement.DocumentStages...)
	return append(steps, requirement.StageConsent)
}

// ChecklistEntry lists the required fields of one stage.
type ChecklistEntry struct {
	Stage  requirement.Stage
	Fields []string
}

// BuildChecklist derives the informational DETAILS checklist. It gates nothing.
func BuildChecklist(items []requirement.Item) []ChecklistEntry {
	var out []ChecklistEntry
	for _, s := range requirement.DesignerStages {
		if fields := requirement.RequiredFields(items, s); len(fields) > 0 {
			out = append(out, ChecklistEntry{Stage: s, Fields: fields})
		}
	}
	return out
}
