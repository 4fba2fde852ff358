package confirmpayment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/camunda"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/events"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/observability"
	"tender-workflow/internal/payment"
)

const (
	TaskType = "confirm-payment"
)

// TenderInvalidator drops cached tender state after an unconfirmed payment.
type TenderInvalidator interface {
	Invalidate(ctx context.Context, tenderID string)
}

type Dependencies struct {
	Gateway payment.Gateway
	Ledger  payment.Ledger
	Events  events.Publisher
	Tenders TenderInvalidator
}

// Handler issues one USSD push and blocks until the confirmation protocol
// finishes. Each job gets its own orchestrator so jobs never share a
// progress guard.
type Handler struct {
	config *Config
	deps   Dependencies
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, deps Dependencies, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		deps:   deps,
		runner: camunda.NewRunner(TaskType, config.Timeout, obs, log),
		logger: log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
			return nil, errors.NewValidationError("invalid job variables: " + err.Error())
		}
		return h.Execute(ctx, &input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	orch := payment.New(payment.Config{
		PollInterval: h.config.PollInterval,
		MaxAttempts:  h.config.MaxAttempts,
		PushTimeout:  h.config.PushTimeout,
	}, payment.Dependencies{
		Gateway: h.deps.Gateway,
		Ledger:  h.deps.Ledger,
		Events:  h.deps.Events,
		Resync:  h.resync(input.TenderID),
	}, h.logger)
	defer orch.Close()

	session, err := orch.Pay(ctx, backend.PushRequest{
		Amount:        input.Amount,
		PhoneNumber:   input.PhoneNumber,
		MNO:           input.MNO,
		Source:        input.Source,
		PaymentReason: input.PaymentReason,
	})
	if err != nil {
		return nil, err
	}

	res := session.Result()
	switch res.Outcome {
	case payment.OutcomeConfirmed:
		return &Output{RequestID: res.RequestID, Confirmed: true, Attempts: res.Attempts}, nil
	case payment.OutcomeTimedOut:
		return nil, res.Err
	default:
		// Cancelled by the job deadline. Retrying would push a second prompt to the phone.
		return nil, fmt.Errorf("payment %s confirmation cancelled after %d attempts: %w",
			res.RequestID, res.Attempts, ctx.Err())
	}
}

func (h *Handler) resync(tenderID string) func(context.Context, string) {
	return func(ctx context.Context, requestID string) {
		h.logger.Warn("payment unconfirmed, reloading tender state", map[string]interface{}{
			"tenderId":  tenderID,
			"requestId": requestID,
		})
		if h.deps.Tenders != nil && tenderID != "" {
			h.deps.Tenders.Invalidate(ctx, tenderID)
		}
	}
}
