package requirement

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	apperrors "tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
)

// Field names one editable property of an Item.
type Field string

const (
	FieldFieldName   Field = "fieldName"
	FieldRequired    Field = "required"
	FieldDescription Field = "description"
	FieldPercentage  Field = "percentage"
)

// WarnBudgetExceeded is surfaced when an edit was clamped to the remaining headroom.
const WarnBudgetExceeded = "total percentage cannot exceed 100"

// Warning is a non-fatal edit outcome. The edit was applied, possibly altered.
type Warning struct {
	Message   string
	Requested float64
	Applied   float64
}

// Designer builds the requirement list for one tender. It is meant to be driven
// by a single editing session and is not safe for concurrent use.
type Designer struct {
	items   map[Stage][]Item
	catalog Catalog
	logger  logger.Logger
}

// NewDesigner starts an empty schema.
func NewDesigner(catalog Catalog, log logger.Logger) *Designer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	items := make(map[Stage][]Item, len(DesignerStages))
	for _, s := range DesignerStages {
		items[s] = nil
	}
	return &Designer{
		items:   items,
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"component": "requirement-designer"}),
	}
}

// NewDesignerFrom loads a persisted list for a full tender update.
func NewDesignerFrom(existing []Item, catalog Catalog, log logger.Logger) (*Designer, error) {
	d := NewDesigner(catalog, log)
	for _, it := range existing {
		if !it.Stage.IsDesignerStage() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("stage %s cannot carry requirements", it.Stage))
		}
		d.items[it.Stage] = append(d.items[it.Stage], it)
	}
	return d, nil
}

// Add appends an empty required item with zero weight and returns its index.
func (d *Designer) Add(stage Stage) (int, error) {
	if !stage.IsDesignerStage() {
		return -1, apperrors.NewValidationError(fmt.Sprintf("stage %s cannot carry requirements", stage))
	}
	d.items[stage] = append(d.items[stage], Item{Stage: stage, Required: true})
	return len(d.items[stage]) - 1, nil
}

// Remove deletes one item. Remaining percentages are left as they are.
func (d *Designer) Remove(stage Stage, index int) error {
	if err := d.checkIndex(stage, index); err != nil {
		return err
	}
	list := d.items[stage]
	d.items[stage] = append(list[:index:index], list[index+1:]...)
	return nil
}

// Update mutates one field of one item. Percentage edits are clamped to
// 100 minus the sum of every other item; a clamp yields a Warning.
func (d *Designer) Update(stage Stage, index int, key Field, value interface{}) (*Warning, error) {
	if err := d.checkIndex(stage, index); err != nil {
		return nil, err
	}
	item := &d.items[stage][index]

	switch key {
	case FieldFieldName:
		name, ok := value.(string)
		if !ok {
			return nil, apperrors.NewValidationError("fieldName must be a string")
		}
		if name != "" && !d.selectable(stage, index, name) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("%s is not available for stage %s", name, stage))
		}
		item.FieldName = name
		return nil, nil

	case FieldRequired:
		required, ok := value.(bool)
		if !ok {
			return nil, apperrors.NewValidationError("required must be a boolean")
		}
		item.Required = required
		return nil, nil

	case FieldDescription:
		desc, ok := value.(string)
		if !ok {
			return nil, apperrors.NewValidationError("description must be a string")
		}
		item.Description = desc
		return nil, nil

	case FieldPercentage:
		requested, err := toDecimal(value)
		if err != nil {
			return nil, err
		}
		return d.setPercentage(stage, index, requested), nil
	}

	return nil, apperrors.NewValidationError(fmt.Sprintf("unknown requirement field %q", key))
}

func (d *Designer) setPercentage(stage Stage, index int, requested decimal.Decimal) *Warning {
	others := d.Total().Sub(d.items[stage][index].percentage())
	headroom := FullBudget.Sub(others)
	if headroom.IsNegative() {
		headroom = decimal.Zero
	}

	effective := decimal.Min(requested, headroom)
	d.items[stage][index].Percentage = effective.InexactFloat64()

	if effective.Equal(requested) {
		return nil
	}

	w := &Warning{
		Message:   WarnBudgetExceeded,
		Requested: requested.InexactFloat64(),
		Applied:   effective.InexactFloat64(),
	}
	d.logger.Warn(WarnBudgetExceeded, map[string]interface{}{
		"stage":     string(stage),
		"index":     index,
		"requested": w.Requested,
		"applied":   w.Applied,
	})
	return w
}

// Options returns the picker choices for one row: the stage catalog minus
// names already used by sibling rows. The row's own value stays selectable.
func (d *Designer) Options(stage Stage, index int) []string {
	taken := make(map[string]bool)
	for i, it := range d.items[stage] {
		if i != index && it.FieldName != "" {
			taken[it.FieldName] = true
		}
	}
	var out []string
	for _, name := range d.catalog[stage] {
		if !taken[name] {
			out = append(out, name)
		}
	}
	return out
}

func (d *Designer) selectable(stage Stage, index int, name string) bool {
	if len(d.catalog[stage]) > 0 && !d.catalog.contains(stage, name) {
		return false
	}
	for i, it := range d.items[stage] {
		if i != index && it.FieldName == name {
			return false
		}
	}
	return true
}

// Items returns a copy of one stage's rows.
func (d *Designer) Items(stage Stage) []Item {
	return append([]Item(nil), d.items[stage]...)
}

// Total is the running percentage across all stages.
func (d *Designer) Total() decimal.Decimal {
	return Total(d.Flatten())
}

// Remaining is the headroom left for new weight.
func (d *Designer) Remaining() decimal.Decimal {
	return FullBudget.Sub(d.Total())
}

// Flatten returns every item in designer stage order.
func (d *Designer) Flatten() []Item {
	var out []Item
	for _, s := range DesignerStages {
		out = append(out, d.items[s]...)
	}
	return out
}

// Submit enforces the budget invariant and returns the payload list.
// This check is independent of the edit-time clamp.
func (d *Designer) Submit() ([]Item, error) {
	items := d.Flatten()
	if err := ValidateBudget(items); err != nil {
		d.logger.Warn("requirement schema rejected", map[string]interface{}{
			"total": d.Total().String(),
			"items": len(items),
		})
		return nil, err
	}
	return items, nil
}

func (d *Designer) checkIndex(stage Stage, index int) error {
	if !stage.IsDesignerStage() {
		return apperrors.NewValidationError(fmt.Sprintf("stage %s cannot carry requirements", stage))
	}
	if index < 0 || index >= len(d.items[stage]) {
		return apperrors.NewValidationError(fmt.Sprintf("no requirement %d in stage %s", index, stage))
	}
	return nil
}

func toDecimal(value interface{}) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, apperrors.NewValidationError("percentage must be a finite number")
		}
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case decimal.Decimal:
		d = v
	case string:
		if v == "" {
			d = decimal.Zero
			break
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, apperrors.NewValidationError(fmt.Sprintf("percentage %q is not a number", v))
		}
		d = decimal.NewFromFloat(f)
	default:
		return decimal.Zero, apperrors.NewValidationError(fmt.Sprintf("percentage has unsupported type %T", value))
	}
	if d.IsNegative() {
		return decimal.Zero, apperrors.NewValidationError("percentage must be between 0 and 100")
	}
	return d, nil
}
