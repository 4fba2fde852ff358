package requirement

import (
	"encoding/json"
	"strings"

	apperrors "tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/validation"
)

// payloadSchemaJSON describes the requirements JSON attached to create/update tender.
const payloadSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["stage", "fieldName", "required", "percentage"],
    "additionalProperties": false,
    "properties": {
      "stage": {"type": "string", "enum": ["PRELIMINARY", "TECHNICAL", "COMMERCIAL", "FINANCIAL", "CONSENT"]},
      "fieldName": {"type": "string", "minLength": 1},
      "required": {"type": "boolean"},
      "description": {"type": "string"},
      "percentage": {"type": "number", "minimum": 0, "maximum": 100}
    }
  }
}`

var payloadSchema = validation.MustCompile(payloadSchemaJSON)

// MarshalPayload validates items and encodes them for the tender multipart form.
func MarshalPayload(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	if err := ValidateBudget(items); err != nil {
		return nil, err
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if err := checkShape(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ParsePayload decodes a persisted requirements document, checking shape,
// per-stage name uniqueness and the budget.
func ParsePayload(data []byte) ([]Item, error) {
	if err := checkShape(data); err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, apperrors.NewValidationError("requirements are not valid JSON: " + err.Error())
	}
	if err := checkUnique(items); err != nil {
		return nil, err
	}
	if err := ValidateBudget(items); err != nil {
		return nil, err
	}
	return items, nil
}

func checkShape(data []byte) error {
	result, err := payloadSchema.ValidateBytes(data)
	if err != nil {
		return apperrors.NewValidationError("requirements are not valid JSON: " + err.Error())
	}
	if !result.Valid {
		return apperrors.NewValidationError("requirements payload invalid: " +
			strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

func checkUnique(items []Item) error {
	seen := make(map[Stage]map[string]bool)
	for _, it := range items {
		if seen[it.Stage] == nil {
			seen[it.Stage] = make(map[string]bool)
		}
		if seen[it.Stage][it.FieldName] {
			return apperrors.NewValidationError("duplicate requirement " + it.FieldName + " in stage " + string(it.Stage))
		}
		seen[it.Stage][it.FieldName] = true
	}
	return nil
}
