package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/metrics"
	"tender-workflow/internal/store"
)

// GateState is the fee gate in front of the application wizard.
type GateState string

const (
	GateNotRequired          GateState = "NOT_REQUIRED"
	GatePaid                 GateState = "PAID"
	GateInsufficientBalance  GateState = "INSUFFICIENT_BALANCE"
	GateAwaitingConfirmation GateState = "AWAITING_CONFIRMATION"
)

// GateResult describes what the gate screen should show.
type GateResult struct {
	State     GateState
	Balance   decimal.Decimal
	Threshold decimal.Decimal
}

// Open reports whether the wizard may be opened.
func (g GateResult) Open() bool {
	return g.State == GateNotRequired || g.State == GatePaid
}

// Gate compares the bidder's wallet balance with the required fee.
func (o *Orchestrator) Gate(ctx context.Context, bidderID string, threshold decimal.Decimal, alreadyPaid bool) (*GateResult, error) {
	res := &GateResult{Threshold: threshold}

	switch {
	case alreadyPaid:
		res.State = GatePaid
		return res, nil
	case !threshold.IsPositive():
		res.State = GateNotRequired
		return res, nil
	}

	bal, err := o.gateway.GetWalletBalance(ctx, bidderID)
	if err != nil {
		o.logger.Warn("wallet balance lookup failed", map[string]interface{}{"bidderId": bidderID, "error": err.Error()})
		return nil, err
	}
	res.Balance = bal.Balance

	if bal.Balance.LessThan(threshold) {
		res.State = GateInsufficientBalance
		return res, nil
	}
	res.State = GateAwaitingConfirmation
	return res, nil
}

// ConfirmDirect performs the single synchronous wallet debit. There is no polling on this path.
func (o *Orchestrator) ConfirmDirect(ctx context.Context, form backend.PaymentForm) error {
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	if form.Source == "" {
		form.Source = backend.SourceWallet
	}
	if !form.Amount.IsPositive() {
		return errors.NewValidationError("payment amount must be positive")
	}

	if err := o.gateway.CreatePayment(ctx, form); err != nil {
		metrics.PaymentOutcomes.WithLabelValues("direct_failed").Inc()
		failed := errors.NewPaymentRequestFailedError(backend.ServerMessage(err), err)
		o.notifyError(failed)
		return failed
	}

	metrics.PaymentOutcomes.WithLabelValues("direct_debited").Inc()
	o.recordPayment(ctx, store.PaymentRecord{
		RequestID: "direct-" + uuid.NewString(),
		Amount:    form.Amount,
		Source:    form.Source,
		Reason:    form.Reason,
		Status:    store.PaymentDebited,
	})
	o.logger.Info("direct payment debited", map[string]interface{}{
		"tenderId": form.TenderID,
		"bidderId": form.BidderID,
		"amount":   form.Amount.String(),
	})
	return nil
}
