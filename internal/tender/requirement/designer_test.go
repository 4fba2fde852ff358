package requirement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
)

func newTestDesigner(t *testing.T) *Designer {
	return NewDesigner(DefaultCatalog(), logger.NewTestLogger(t))
}

func addWithPercentage(t *testing.T, d *Designer, stage Stage, name string, pct interface{}) int {
	idx, err := d.Add(stage)
	require.NoError(t, err)
	_, err = d.Update(stage, idx, FieldFieldName, name)
	require.NoError(t, err)
	w, err := d.Update(stage, idx, FieldPercentage, pct)
	require.NoError(t, err)
	require.Nil(t, w)
	return idx
}

func TestDesigner_AddDefaults(t *testing.T) {
	d := newTestDesigner(t)

	idx, err := d.Add(StagePreliminary)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	items := d.Items(StagePreliminary)
	require.Len(t, items, 1)
	assert.Equal(t, Item{Stage: StagePreliminary, Required: true}, items[0])
}

func TestDesigner_AddRejectsWizardOnlyStages(t *testing.T) {
	d := newTestDesigner(t)

	for _, s := range []Stage{StageDetails, StagePayment, Stage("BOGUS")} {
		_, err := d.Add(s)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation), s)
	}
}

func TestDesigner_SubmitBudget(t *testing.T) {
	tests := []struct {
		name    string
		pcts    []interface{}
		wantErr string
	}{
		{name: "empty list", pcts: nil},
		{name: "exact", pcts: []interface{}{60.0, 40.0}},
		{name: "thirds", pcts: []interface{}{33.3, 33.3, 33.4}},
		{name: "short", pcts: []interface{}{50.0, 20.0}, wantErr: "total is 70%, must be exactly 100%"},
		{name: "all zero", pcts: []interface{}{0, 0}, wantErr: "total is 0%, must be exactly 100%"},
	}

	names := DefaultCatalog()[StagePreliminary]
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDesigner(t)
			for i, p := range tt.pcts {
				addWithPercentage(t, d, StagePreliminary, names[i], p)
			}

			items, err := d.Submit()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Len(t, items, len(tt.pcts))
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
			assert.Equal(t, tt.wantErr, apperrors.MessageOf(err))
		})
	}
}

func TestValidateBudget_Exceeds(t *testing.T) {
	items := []Item{
		{Stage: StagePreliminary, FieldName: "CV", Percentage: 70},
		{Stage: StageTechnical, FieldName: "METHODOLOGY", Percentage: 40},
	}

	err := ValidateBudget(items)
	require.Error(t, err)
	assert.Equal(t, "total exceeds 100%", apperrors.MessageOf(err))
}

func TestDesigner_UpdateClampsToHeadroom(t *testing.T) {
	tests := []struct {
		name      string
		others    []float64
		requested float64
		want      float64
		warned    bool
	}{
		{name: "fits", others: []float64{30}, requested: 70, want: 70},
		{name: "clamped", others: []float64{30, 20}, requested: 80, want: 50, warned: true},
		{name: "no headroom", others: []float64{100}, requested: 10, want: 0, warned: true},
		{name: "fractional", others: []float64{33.3, 33.3}, requested: 50, want: 33.4, warned: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDesigner(t)
			tech := DefaultCatalog()[StageTechnical]
			for i, p := range tt.others {
				addWithPercentage(t, d, StageTechnical, tech[i], p)
			}
			idx, err := d.Add(StageFinancial)
			require.NoError(t, err)

			w, err := d.Update(StageFinancial, idx, FieldPercentage, tt.requested)
			require.NoError(t, err)

			assert.Equal(t, tt.want, d.Items(StageFinancial)[idx].Percentage)
			if tt.warned {
				require.NotNil(t, w)
				assert.Equal(t, WarnBudgetExceeded, w.Message)
				assert.Equal(t, tt.requested, w.Requested)
				assert.Equal(t, tt.want, w.Applied)
			} else {
				assert.Nil(t, w)
			}
			assert.True(t, d.Total().LessThanOrEqual(FullBudget))
		})
	}
}

func TestDesigner_UpdateOwnValueExcludedFromOthers(t *testing.T) {
	d := newTestDesigner(t)
	idx := addWithPercentage(t, d, StagePreliminary, "CV", 90.0)

	w, err := d.Update(StagePreliminary, idx, FieldPercentage, 100.0)
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.True(t, d.Remaining().IsZero())
}

func TestDesigner_UpdatePercentageInputs(t *testing.T) {
	d := newTestDesigner(t)
	idx, err := d.Add(StageConsent)
	require.NoError(t, err)

	_, err = d.Update(StageConsent, idx, FieldPercentage, "12.5")
	require.NoError(t, err)
	assert.Equal(t, 12.5, d.Items(StageConsent)[idx].Percentage)

	_, err = d.Update(StageConsent, idx, FieldPercentage, decimal.RequireFromString("7"))
	require.NoError(t, err)
	assert.Equal(t, 7.0, d.Items(StageConsent)[idx].Percentage)

	for _, bad := range []interface{}{"abc", -1.0, true} {
		_, err = d.Update(StageConsent, idx, FieldPercentage, bad)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation), "%v", bad)
	}
}

func TestDesigner_OptionsExcludeSiblings(t *testing.T) {
	d := newTestDesigner(t)
	first := addWithPercentage(t, d, StagePreliminary, "CV", 10.0)
	second, err := d.Add(StagePreliminary)
	require.NoError(t, err)

	assert.NotContains(t, d.Options(StagePreliminary, second), "CV")
	assert.Contains(t, d.Options(StagePreliminary, first), "CV")

	_, err = d.Update(StagePreliminary, second, FieldFieldName, "CV")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	_, err = d.Update(StagePreliminary, second, FieldFieldName, "NOT_IN_CATALOG")
	assert.Error(t, err)

	// Another stage keeps its own scope.
	idx, err := d.Add(StageTechnical)
	require.NoError(t, err)
	assert.NotContains(t, d.Options(StageTechnical, idx), "CV")
}

func TestDesigner_RemoveDoesNotRenormalize(t *testing.T) {
	d := newTestDesigner(t)
	addWithPercentage(t, d, StagePreliminary, "CV", 40.0)
	addWithPercentage(t, d, StagePreliminary, "TAX_CLEARANCE", 60.0)

	require.NoError(t, d.Remove(StagePreliminary, 0))

	items := d.Items(StagePreliminary)
	require.Len(t, items, 1)
	assert.Equal(t, "TAX_CLEARANCE", items[0].FieldName)
	assert.Equal(t, 60.0, items[0].Percentage)

	_, err := d.Submit()
	assert.Error(t, err)

	assert.Error(t, d.Remove(StagePreliminary, 5))
}

func TestDesigner_SubmitIgnoresClampForProgrammaticInput(t *testing.T) {
	existing := []Item{
		{Stage: StagePreliminary, FieldName: "CV", Required: true, Percentage: 80},
		{Stage: StageTechnical, FieldName: "METHODOLOGY", Required: true, Percentage: 80},
	}
	d, err := NewDesignerFrom(existing, nil, logger.NewNoOpLogger())
	require.NoError(t, err)

	_, err = d.Submit()
	require.Error(t, err)
	assert.Equal(t, "total exceeds 100%", apperrors.MessageOf(err))
}

func TestDesigner_FlattenOrder(t *testing.T) {
	d := newTestDesigner(t)
	addWithPercentage(t, d, StageConsent, "DECLARATION_OF_CONSENT", 10.0)
	addWithPercentage(t, d, StagePreliminary, "CV", 90.0)

	items, err := d.Submit()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, StagePreliminary, items[0].Stage)
	assert.Equal(t, StageConsent, items[1].Stage)
	assert.Equal(t, []string{"CV"}, RequiredFields(items, StagePreliminary))
}

func TestPayload_RoundTripAndRejects(t *testing.T) {
	items := []Item{
		{Stage: StagePreliminary, FieldName: "CV", Required: true, Percentage: 33.3},
		{Stage: StageTechnical, FieldName: "METHODOLOGY", Required: false, Percentage: 33.3},
		{Stage: StageFinancial, FieldName: "BANK_STATEMENT", Required: true, Percentage: 33.4},
	}
	data, err := MarshalPayload(items)
	require.NoError(t, err)

	parsed, err := ParsePayload(data)
	require.NoError(t, err)
	assert.Equal(t, items, parsed)

	empty, err := MarshalPayload(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(empty))

	bad := []string{
		`{"stage":"PRELIMINARY"}`,
		`[{"stage":"DETAILS","fieldName":"CV","required":true,"percentage":100}]`,
		`[{"stage":"PRELIMINARY","fieldName":"CV","required":true,"percentage":101}]`,
		`[{"stage":"PRELIMINARY","fieldName":"CV","required":true,"percentage":50},{"stage":"PRELIMINARY","fieldName":"CV","required":true,"percentage":50}]`,
	}
	for _, doc := range bad {
		_, err := ParsePayload([]byte(doc))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation), doc)
	}
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage(" technical ")
	require.NoError(t, err)
	assert.Equal(t, StageTechnical, s)

	_, err = ParseStage("UNKNOWN")
	assert.Error(t, err)
}
