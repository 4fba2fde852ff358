package validaterequirementschema

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
)

func newTestHandler(t *testing.T) *Handler {
	return NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))
}

func TestHandler_Execute_Valid(t *testing.T) {
	h := newTestHandler(t)

	output, err := h.Execute(context.Background(), &Input{
		TenderID: "T-1",
		Requirements: json.RawMessage(`[
			{"stage":"TECHNICAL","fieldName":"Work Plan","required":true,"description":"","percentage":33.3},
			{"stage":"TECHNICAL","fieldName":"Methodology","required":false,"description":"","percentage":33.3},
			{"stage":"FINANCIAL","fieldName":"Bill of Quantities","required":true,"description":"","percentage":33.4}
		]`),
	})
	require.NoError(t, err)
	assert.True(t, output.Valid)
	assert.Equal(t, 100.0, output.Total)
	assert.Equal(t, 3, output.ItemCount)
	assert.Equal(t, map[string]int{"TECHNICAL": 2, "FINANCIAL": 1}, output.PerStage)
}

func TestHandler_Execute_EmptyIsValid(t *testing.T) {
	h := newTestHandler(t)

	for _, raw := range []string{"", "null", "[]"} {
		output, err := h.Execute(context.Background(), &Input{Requirements: json.RawMessage(raw)})
		require.NoError(t, err, raw)
		assert.True(t, output.Valid)
		assert.Zero(t, output.ItemCount)
	}
}

func TestHandler_Execute_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		message string
	}{
		{
			name:    "under budget",
			payload: `[{"stage":"TECHNICAL","fieldName":"A","required":true,"description":"","percentage":50},{"stage":"TECHNICAL","fieldName":"B","required":true,"description":"","percentage":20}]`,
			message: "total is 70%, must be exactly 100%",
		},
		{
			name:    "over budget",
			payload: `[{"stage":"TECHNICAL","fieldName":"A","required":true,"description":"","percentage":60},{"stage":"FINANCIAL","fieldName":"B","required":true,"description":"","percentage":60}]`,
			message: "total exceeds 100%",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestHandler(t).Execute(context.Background(), &Input{Requirements: json.RawMessage(tt.payload)})
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
			assert.Equal(t, tt.message, errors.MessageOf(err))
		})
	}
}

func TestHandler_Execute_RejectsUnknownStage(t *testing.T) {
	_, err := newTestHandler(t).Execute(context.Background(), &Input{
		Requirements: json.RawMessage(`[{"stage":"PAYMENT","fieldName":"A","required":true,"description":"","percentage":100}]`),
	})
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}
