package payment

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/metrics"
	"tender-workflow/internal/tender/notify"
)

// Outcome is how a confirmation session ended.
type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeTimedOut  Outcome = "TIMED_OUT"
	OutcomeCancelled Outcome = "CANCELLED"
)

// Result of a finished session. Err is set for TIMED_OUT.
type Result struct {
	RequestID string
	Outcome   Outcome
	Attempts  int
	Err       error
}

// PollSession polls one push request on a fixed interval. It stops on the
// first SUCCESS, after the attempt ceiling, or when cancelled. Ticks are
// sequential: one enquiry is in flight at a time.
type PollSession struct {
	requestID string
	owner     *Orchestrator
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   chan struct{} // outcome recorded
	done      chan struct{} // callbacks finished

	once   sync.Once
	result Result
}

func newPollSession(parent context.Context, requestID string, owner *Orchestrator) *PollSession {
	ctx, cancel := context.WithCancel(parent)
	return &PollSession{
		requestID: requestID,
		owner:     owner,
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *PollSession) RequestID() string { return s.requestID }

// Cancel stops polling. Safe to call more than once and after completion.
func (s *PollSession) Cancel() { s.cancel() }

// Done is closed once the session has stopped, its outcome is recorded and
// the Notifier and Resync callbacks have returned.
func (s *PollSession) Done() <-chan struct{} { return s.done }

// Result blocks until Done is closed. Callbacks must not call it.
func (s *PollSession) Result() Result {
	<-s.done
	return s.result
}

func (s *PollSession) run() {
	defer s.cancel()
	o := s.owner
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-s.ctx.Done():
			s.stop(Result{RequestID: s.requestID, Outcome: OutcomeCancelled, Attempts: attempts})
			return
		case <-ticker.C:
		}

		resp, err := o.gateway.USSDPushEnquiry(s.ctx, s.requestID)
		attempts++

		if err == nil && resp == nil {
			err = stderrors.New("empty enquiry response")
		}

		switch {
		case err != nil && s.ctx.Err() != nil:
			s.stop(Result{RequestID: s.requestID, Outcome: OutcomeCancelled, Attempts: attempts})
			return
		case err != nil:
			metrics.PaymentPollTicks.WithLabelValues("error").Inc()
			o.logger.Warn(WarnEnquiryFailed, map[string]interface{}{
				"requestId": s.requestID,
				"attempt":   attempts,
				"error":     err.Error(),
			})
			o.notifier.Notify(notify.Notification{Level: notify.LevelWarning, Message: WarnEnquiryFailed})
		case resp.Code == backend.EnquirySuccess:
			metrics.PaymentPollTicks.WithLabelValues(resp.Code).Inc()
			s.stop(Result{RequestID: s.requestID, Outcome: OutcomeConfirmed, Attempts: attempts})
			return
		default:
			metrics.PaymentPollTicks.WithLabelValues(statusLabel(resp.Code)).Inc()
			o.logger.Debug("payment still pending", map[string]interface{}{
				"requestId": s.requestID,
				"attempt":   attempts,
				"code":      resp.Code,
			})
		}

		if attempts >= o.cfg.MaxAttempts {
			s.stop(Result{
				RequestID: s.requestID,
				Outcome:   OutcomeTimedOut,
				Attempts:  attempts,
				Err:       errors.NewPaymentConfirmationTimeoutError(s.requestID, attempts),
			})
			return
		}
	}
}

func (s *PollSession) stop(res Result) {
	s.once.Do(func() {
		s.result = res
		s.owner.record(s, res)
		close(s.stopped)
		s.owner.react(res)
		close(s.done)
	})
}

func statusLabel(code string) string {
	if code == "" {
		return "UNKNOWN"
	}
	return code
}
