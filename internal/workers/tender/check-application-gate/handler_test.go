package checkapplicationgate

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/payment"
	"tender-workflow/internal/tender/requirement"
	"tender-workflow/internal/tender/upload"
)

type stubTenders struct {
	details *backend.TenderDetails
	err     error
}

func (s *stubTenders) GetTenderDetails(context.Context, string) (*backend.TenderDetails, error) {
	return s.details, s.err
}

type stubGate struct {
	result *payment.GateResult
	calls  int
}

func (s *stubGate) Gate(_ context.Context, _ string, threshold decimal.Decimal, paid bool) (*payment.GateResult, error) {
	s.calls++
	r := *s.result
	r.Threshold = threshold
	return &r, nil
}

type stubCorrelations struct {
	store upload.IDStore
}

func (s stubCorrelations) For(string, string) upload.IDStore { return s.store }

func newTestHandler(t *testing.T, details *backend.TenderDetails, gate *stubGate, corr Correlations) *Handler {
	return NewHandler(LoadConfig(), Dependencies{
		Tenders:      &stubTenders{details: details},
		Gate:         gate,
		Correlations: corr,
	}, nil, logger.NewTestLogger(t))
}

func openTender(fee int64) *backend.TenderDetails {
	return &backend.TenderDetails{
		ID:                "T-1",
		ApplicationStatus: backend.ApplicationStatusNotFound,
		ApplicationFee:    decimal.NewFromInt(fee),
		Requirements: []requirement.Item{
			{Stage: requirement.StageTechnical, FieldName: "Work Plan", Required: true, Percentage: 100},
		},
	}
}

func TestHandler_Execute_ZeroFeeShowsPaymentStep(t *testing.T) {
	gate := &stubGate{result: &payment.GateResult{State: payment.GateNotRequired}}
	h := newTestHandler(t, openTender(0), gate, nil)

	out, err := h.Execute(context.Background(), &Input{TenderID: "T-1", BidderID: "B-1"})
	require.NoError(t, err)
	assert.False(t, out.Locked)
	assert.True(t, out.GateOpen)
	assert.Equal(t, []string{"DETAILS", "PAYMENT", "PRELIMINARY", "TECHNICAL", "COMMERCIAL", "CONSENT"}, out.Steps)
	assert.Equal(t, []ChecklistEntry{{Stage: "TECHNICAL", Fields: []string{"Work Plan"}}}, out.Checklist)
}

func TestHandler_Execute_FeeOwedInsufficientBalance(t *testing.T) {
	gate := &stubGate{result: &payment.GateResult{State: payment.GateInsufficientBalance, Balance: decimal.NewFromInt(10)}}
	h := newTestHandler(t, openTender(500), gate, nil)

	out, err := h.Execute(context.Background(), &Input{TenderID: "T-1", BidderID: "B-1"})
	require.NoError(t, err)
	assert.Equal(t, string(payment.GateInsufficientBalance), out.GateState)
	assert.False(t, out.GateOpen)
	assert.Equal(t, "10", out.Balance)
	assert.Equal(t, "500", out.Threshold)
	assert.NotContains(t, out.Steps, "PAYMENT")
}

func TestHandler_Execute_SubmittedIsLocked(t *testing.T) {
	details := openTender(500)
	details.ApplicationStatus = backend.ApplicationStatusSubmitted
	details.ApplicationID = "APP-9"
	gate := &stubGate{result: &payment.GateResult{}}
	h := newTestHandler(t, details, gate, nil)

	out, err := h.Execute(context.Background(), &Input{TenderID: "T-1", BidderID: "B-1"})
	require.NoError(t, err)
	assert.True(t, out.Locked)
	assert.Empty(t, out.GateState)
	assert.False(t, out.GateOpen)
	assert.Empty(t, out.Steps)
	assert.Equal(t, "APP-9", out.ApplicationID)
	assert.Zero(t, gate.calls, "locked applications skip the fee gate")
}

func TestHandler_Execute_ResumesCorrelatedApplication(t *testing.T) {
	gate := &stubGate{result: &payment.GateResult{State: payment.GateNotRequired}}
	h := newTestHandler(t, openTender(0), gate, stubCorrelations{store: upload.NewMemoryIDStore("APP-7")})

	out, err := h.Execute(context.Background(), &Input{TenderID: "T-1", BidderID: "B-1"})
	require.NoError(t, err)
	assert.Equal(t, "APP-7", out.ApplicationID)
}

func TestHandler_Execute_RequiresIDs(t *testing.T) {
	h := newTestHandler(t, openTender(0), &stubGate{result: &payment.GateResult{}}, nil)

	_, err := h.Execute(context.Background(), &Input{TenderID: "T-1"})
	assert.Error(t, err)
}

func TestHandler_Execute_BackendError(t *testing.T) {
	h := NewHandler(LoadConfig(), Dependencies{
		Tenders: &stubTenders{err: stderrors.New("down")},
		Gate:    &stubGate{result: &payment.GateResult{}},
	}, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{TenderID: "T-1", BidderID: "B-1"})
	assert.Error(t, err)
}
