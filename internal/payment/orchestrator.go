// Package payment runs the application fee gate and the USSD push/poll
// confirmation protocol.
package payment

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/events"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/metrics"
	"tender-workflow/internal/common/validation"
	"tender-workflow/internal/store"
	"tender-workflow/internal/tender/notify"
)

// Defaults of the confirmation protocol: 5 attempts, 5 seconds apart.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 5
	DefaultPushTimeout  = 15 * time.Second
)

// WarnEnquiryFailed is surfaced for every enquiry error; polling continues.
const WarnEnquiryFailed = "error checking payment status"

// MsgConfirmed is the notification sent when the payment is confirmed.
const MsgConfirmed = "payment confirmed"

// Gateway is the backend surface used by the orchestrator.
type Gateway interface {
	CreatePayment(ctx context.Context, form backend.PaymentForm) error
	GetWalletBalance(ctx context.Context, bidderID string) (*backend.WalletBalance, error)
	USSDPushRequest(ctx context.Context, req backend.PushRequest) (*backend.PushResponse, error)
	USSDPushEnquiry(ctx context.Context, requestID string) (*backend.EnquiryResponse, error)
}

// Ledger records payment transitions. *store.Ledger implements it.
type Ledger interface {
	RecordPayment(ctx context.Context, rec store.PaymentRecord) error
	UpdatePaymentStatus(ctx context.Context, requestID, status string, attempts int) error
}

type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
	// PushTimeout bounds the USSD push request round trip.
	PushTimeout time.Duration
}

type Dependencies struct {
	Gateway  Gateway
	Ledger   Ledger
	Events   events.Publisher
	Notifier notify.Notifier
	// Resync is called when confirmation times out; the caller must reload
	// its state from the backend instead of guessing the payment outcome.
	Resync func(ctx context.Context, requestID string)
}

// Orchestrator serves one payment screen. At most one payment is in progress at a time.
type Orchestrator struct {
	cfg      Config
	gateway  Gateway
	ledger   Ledger
	events   events.Publisher
	notifier notify.Notifier
	resync   func(context.Context, string)
	logger   logger.Logger

	mu      sync.Mutex
	busy    bool
	session *PollSession
	closed  bool
}

func New(cfg Config, deps Dependencies, log logger.Logger) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = DefaultPushTimeout
	}
	n := deps.Notifier
	if n == nil {
		n = notify.Nop{}
	}
	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}
	return &Orchestrator{
		cfg:      cfg,
		gateway:  deps.Gateway,
		ledger:   deps.Ledger,
		events:   pub,
		notifier: n,
		resync:   deps.Resync,
		logger:   log.WithFields(map[string]interface{}{"component": "payment-orchestrator"}),
	}
}

// InProgress is true while a push or debit is outstanding. Surfaces hide
// payment method controls while it holds.
func (o *Orchestrator) InProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.NewPreconditionFailedError("payment screen is closed")
	}
	if o.busy {
		id := ""
		if o.session != nil {
			id = o.session.requestID
		}
		return errors.NewPaymentInProgressError(id)
	}
	o.busy = true
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// Pay issues the push request and starts confirmation polling. A failed push
// returns PAYMENT_REQUEST_FAILED and no polling starts.
func (o *Orchestrator) Pay(ctx context.Context, req backend.PushRequest) (*PollSession, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}

	requestID, err := o.requestPush(ctx, req)
	if err != nil {
		o.end()
		return nil, err
	}

	o.mu.Lock()
	if o.closed {
		o.busy = false
		o.mu.Unlock()
		return nil, errors.NewPreconditionFailedError("payment screen is closed")
	}
	s := newPollSession(ctx, requestID, o)
	o.session = s
	o.mu.Unlock()

	go s.run()
	return s, nil
}

func (o *Orchestrator) requestPush(ctx context.Context, req backend.PushRequest) (string, error) {
	if req.Source == "" {
		req.Source = backend.SourceMobile
	}
	if !req.Amount.IsPositive() {
		return "", errors.NewValidationError("payment amount must be positive")
	}
	if req.PhoneNumber == "" || req.MNO == "" {
		return "", errors.NewValidationError("phone number and network are required")
	}
	if !validation.ValidatePhone(req.PhoneNumber) {
		return "", errors.NewValidationError("invalid phone number")
	}

	pushCtx, cancel := context.WithTimeout(ctx, o.cfg.PushTimeout)
	defer cancel()
	resp, err := o.gateway.USSDPushRequest(pushCtx, req)
	if err == nil && resp == nil {
		err = stderrors.New("empty push response")
	}
	if err != nil {
		metrics.PaymentPushRequests.WithLabelValues("failed").Inc()
		failed := errors.NewPaymentRequestFailedError(backend.ServerMessage(err), err)
		o.logger.Warn("push request failed", map[string]interface{}{"mno": req.MNO, "error": err.Error()})
		o.notifyError(failed)
		return "", failed
	}
	metrics.PaymentPushRequests.WithLabelValues("accepted").Inc()

	o.recordPayment(ctx, store.PaymentRecord{
		RequestID:   resp.ID,
		Amount:      req.Amount,
		PhoneNumber: req.PhoneNumber,
		MNO:         req.MNO,
		Source:      req.Source,
		Reason:      req.PaymentReason,
		Status:      store.PaymentRequested,
	})
	o.logger.Info("push request accepted", map[string]interface{}{"requestId": resp.ID})
	return resp.ID, nil
}

// Close cancels any active confirmation session and waits until its outcome
// is recorded. It does not wait for the Notifier or Resync callbacks, so
// those may call Close themselves.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	s := o.session
	o.mu.Unlock()

	if s != nil {
		s.Cancel()
		<-s.stopped
	}
}

// record is called exactly once by a session when it stops, before the
// session reports itself stopped.
func (o *Orchestrator) record(s *PollSession, res Result) {
	o.mu.Lock()
	if o.session == s {
		o.busy = false
	}
	o.mu.Unlock()

	// The session context may already be cancelled; side effects use a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics.PaymentOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	fields := map[string]interface{}{"requestId": res.RequestID, "attempts": res.Attempts, "outcome": string(res.Outcome)}

	switch res.Outcome {
	case OutcomeConfirmed:
		o.logger.Info("payment confirmed", fields)
		o.updatePayment(ctx, res.RequestID, store.PaymentConfirmed, res.Attempts)
		o.publish(ctx, events.PaymentConfirmed, res)
	case OutcomeTimedOut:
		o.logger.Warn("payment confirmation timed out", fields)
		o.updatePayment(ctx, res.RequestID, store.PaymentTimedOut, res.Attempts)
		o.publish(ctx, events.PaymentTimedOut, res)
	case OutcomeCancelled:
		o.logger.Info("payment confirmation cancelled", fields)
		o.updatePayment(ctx, res.RequestID, store.PaymentCancelled, res.Attempts)
	}
}

// react runs the caller facing callbacks once the outcome is recorded.
func (o *Orchestrator) react(res Result) {
	switch res.Outcome {
	case OutcomeConfirmed:
		o.notifier.Notify(notify.Notification{Level: notify.LevelInfo, Message: MsgConfirmed})
	case OutcomeTimedOut:
		o.notifier.Notify(notify.Notification{
			Level:   notify.LevelWarning,
			Code:    errors.ErrCodePaymentConfirmationTimeout,
			Message: errors.MessageOf(res.Err),
		})
		if o.resync != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			o.resync(ctx, res.RequestID)
		}
	}
}

func (o *Orchestrator) notifyError(err error) {
	o.notifier.Notify(notify.FromError(err))
}

func (o *Orchestrator) recordPayment(ctx context.Context, rec store.PaymentRecord) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.RecordPayment(ctx, rec); err != nil {
		o.logger.Warn("payment ledger write skipped", map[string]interface{}{"requestId": rec.RequestID, "error": err.Error()})
	}
}

func (o *Orchestrator) updatePayment(ctx context.Context, requestID, status string, attempts int) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.UpdatePaymentStatus(ctx, requestID, status, attempts); err != nil {
		o.logger.Warn("payment ledger update skipped", map[string]interface{}{"requestId": requestID, "error": err.Error()})
	}
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, res Result) {
	err := o.events.Publish(ctx, eventType, map[string]interface{}{
		"requestId": res.RequestID,
		"attempts":  res.Attempts,
	})
	if err != nil {
		o.logger.Warn("payment event not published", map[string]interface{}{"type": eventType, "error": err.Error()})
	}
}
