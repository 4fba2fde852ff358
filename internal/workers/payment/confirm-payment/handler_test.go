package confirmpayment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
)

type scriptedGateway struct {
	mu        sync.Mutex
	codes     []string
	enquiries int
	pushErr   error
}

func (g *scriptedGateway) CreatePayment(context.Context, backend.PaymentForm) error { return nil }

func (g *scriptedGateway) GetWalletBalance(context.Context, string) (*backend.WalletBalance, error) {
	return &backend.WalletBalance{}, nil
}

func (g *scriptedGateway) USSDPushRequest(context.Context, backend.PushRequest) (*backend.PushResponse, error) {
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	return &backend.PushResponse{ID: "REQ-42"}, nil
}

func (g *scriptedGateway) USSDPushEnquiry(context.Context, string) (*backend.EnquiryResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := "PENDING"
	if g.enquiries < len(g.codes) {
		code = g.codes[g.enquiries]
	}
	g.enquiries++
	return &backend.EnquiryResponse{Code: code}, nil
}

type recordingInvalidator struct {
	tenders []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tenderID string) {
	r.tenders = append(r.tenders, tenderID)
}

func newTestHandler(t *testing.T, gw *scriptedGateway, inv *recordingInvalidator) *Handler {
	cfg := LoadConfig()
	cfg.PollInterval = time.Millisecond
	return NewHandler(cfg, Dependencies{Gateway: gw, Tenders: inv}, nil, logger.NewTestLogger(t))
}

func testInput() *Input {
	return &Input{
		TenderID:      "T-1",
		Amount:        decimal.NewFromInt(1000),
		PhoneNumber:   "255700000001",
		MNO:           "AIRTEL",
		PaymentReason: "APPLICATION_FEE",
	}
}

func TestHandler_Execute_Confirmed(t *testing.T) {
	gw := &scriptedGateway{codes: []string{"PENDING", "SUCCESS"}}
	h := newTestHandler(t, gw, &recordingInvalidator{})

	out, err := h.Execute(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, &Output{RequestID: "REQ-42", Confirmed: true, Attempts: 2}, out)
}

func TestHandler_Execute_TimeoutInvalidatesTender(t *testing.T) {
	gw := &scriptedGateway{}
	inv := &recordingInvalidator{}
	h := newTestHandler(t, gw, inv)

	_, err := h.Execute(context.Background(), testInput())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePaymentConfirmationTimeout, errors.CodeOf(err))
	assert.Equal(t, 5, gw.enquiries)
	assert.Equal(t, []string{"T-1"}, inv.tenders)
}

func TestHandler_Execute_PushRejected(t *testing.T) {
	gw := &scriptedGateway{pushErr: &backend.APIError{StatusCode: 400, Message: "unsupported network"}}
	h := newTestHandler(t, gw, &recordingInvalidator{})

	_, err := h.Execute(context.Background(), testInput())
	assert.Equal(t, errors.ErrCodePaymentRequestFailed, errors.CodeOf(err))
	assert.Equal(t, "unsupported network", errors.MessageOf(err))
	assert.Zero(t, gw.enquiries)
}

func TestHandler_Execute_DeadlineCancels(t *testing.T) {
	gw := &scriptedGateway{}
	cfg := LoadConfig()
	cfg.PollInterval = time.Hour
	h := NewHandler(cfg, Dependencies{Gateway: gw}, nil, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Execute(ctx, testInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, gw.enquiries)
}
