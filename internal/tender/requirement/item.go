package requirement

import (
	"github.com/shopspring/decimal"

	apperrors "tender-workflow/internal/common/errors"
)

// FullBudget is the exact percentage every non-empty requirement list must add up to.
var FullBudget = decimal.NewFromInt(100)

// Item is one scored document requirement.
type Item struct {
	Stage       Stage   `json:"stage"`
	FieldName   string  `json:"fieldName"`
	Required    bool    `json:"required"`
	Description string  `json:"description"`
	Percentage  float64 `json:"percentage"`
}

// percentage converts through the shortest decimal representation so that
// 33.3 + 33.3 + 33.4 sums to exactly 100.
func (i Item) percentage() decimal.Decimal {
	return decimal.NewFromFloat(i.Percentage)
}

// Total sums percentages across every item of every stage.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.percentage())
	}
	return total
}

// ValidateBudget is the submission-time invariant. An empty list carries no
// percentage constraint; otherwise the total must be exactly 100.
func ValidateBudget(items []Item) error {
	if len(items) == 0 {
		return nil
	}
	total := Total(items)
	switch total.Cmp(FullBudget) {
	case -1:
		return apperrors.NewValidationError("total is " + total.String() + "%, must be exactly 100%").
			WithMetadata("total", total.String())
	case 1:
		return apperrors.NewValidationError("total exceeds 100%").
			WithMetadata("total", total.String())
	}
	return nil
}

// GroupByStage buckets a flattened list, preserving relative order within a stage.
func GroupByStage(items []Item) map[Stage][]Item {
	out := make(map[Stage][]Item, len(DesignerStages))
	for _, it := range items {
		out[it.Stage] = append(out[it.Stage], it)
	}
	return out
}

// RequiredFields lists the field names that must be uploaded for stage.
func RequiredFields(items []Item, stage Stage) []string {
	var fields []string
	for _, it := range items {
		if it.Stage == stage && it.Required && it.FieldName != "" {
			fields = append(fields, it.FieldName)
		}
	}
	return fields
}
