package submitapplication

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/camunda"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/events"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/metrics"
	"tender-workflow/internal/common/observability"
	"tender-workflow/internal/store"
)

const (
	TaskType = "submit-application"

	statusRejected = "REJECTED"
)

type TenderReader interface {
	GetTenderDetails(ctx context.Context, tenderID string) (*backend.TenderDetails, error)
}

type Reviewer interface {
	ReviewApplication(ctx context.Context, applicationID, status string) error
}

type SubmissionLedger interface {
	RecordSubmission(ctx context.Context, rec store.SubmissionRecord) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, tenderID string)
}

type Correlations interface {
	Forget(ctx context.Context, tenderID, bidderID string) error
}

type Dependencies struct {
	Tenders      TenderReader
	Reviewer     Reviewer
	Ledger       SubmissionLedger
	Events       events.Publisher
	Cache        Invalidator
	Correlations Correlations
}

// Handler performs the final review call. A tender already reported as
// SUBMITTED completes without a second review so job retries stay idempotent.
type Handler struct {
	config *Config
	deps   Dependencies
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, deps Dependencies, obs *observability.Observability, log logger.Logger) *Handler {
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
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
	if !input.ConsentGiven {
		return nil, errors.NewValidationError("must agree to terms")
	}
	if input.ApplicationID == "" {
		return nil, errors.NewPreconditionFailedError("upload documents first")
	}

	tender, err := h.deps.Tenders.GetTenderDetails(ctx, input.TenderID)
	if err != nil {
		return nil, err
	}
	if tender.ApplicationStatus == backend.ApplicationStatusSubmitted {
		h.logger.Info("application already submitted", map[string]interface{}{
			"tenderId":      input.TenderID,
			"applicationId": input.ApplicationID,
		})
		return &Output{
			ApplicationID:    input.ApplicationID,
			Status:           backend.ApplicationStatusSubmitted,
			AlreadySubmitted: true,
		}, nil
	}

	if err := h.deps.Reviewer.ReviewApplication(ctx, input.ApplicationID, backend.ApplicationStatusSubmitted); err != nil {
		message := backend.ServerMessage(err)
		metrics.ApplicationSubmissions.WithLabelValues("rejected").Inc()
		h.record(ctx, input, statusRejected, message)
		h.logger.Warn("application submission rejected", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"error":         err.Error(),
		})
		return nil, errors.NewSubmitRejectedError(message, err).WithMetadata("applicationId", input.ApplicationID)
	}

	metrics.ApplicationSubmissions.WithLabelValues("submitted").Inc()
	h.record(ctx, input, backend.ApplicationStatusSubmitted, "")
	h.afterSubmit(ctx, input)

	h.logger.Info("application submitted", map[string]interface{}{
		"tenderId":      input.TenderID,
		"applicationId": input.ApplicationID,
	})
	return &Output{ApplicationID: input.ApplicationID, Status: backend.ApplicationStatusSubmitted}, nil
}

func (h *Handler) record(ctx context.Context, input *Input, status, message string) {
	if h.deps.Ledger == nil {
		return
	}
	// Failures are logged by the ledger and never block submission.
	_ = h.deps.Ledger.RecordSubmission(ctx, store.SubmissionRecord{
		ApplicationID: input.ApplicationID,
		TenderID:      input.TenderID,
		Status:        status,
		Message:       message,
	})
}

func (h *Handler) afterSubmit(ctx context.Context, input *Input) {
	err := h.deps.Events.Publish(ctx, events.ApplicationSubmitted, map[string]interface{}{
		"tenderId":      input.TenderID,
		"bidderId":      input.BidderID,
		"applicationId": input.ApplicationID,
		"submittedAt":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Warn("submission event not published", map[string]interface{}{"error": err.Error()})
	}

	if h.deps.Cache != nil {
		h.deps.Cache.Invalidate(ctx, input.TenderID)
	}
	if h.deps.Correlations != nil && input.BidderID != "" {
		if err := h.deps.Correlations.Forget(ctx, input.TenderID, input.BidderID); err != nil {
			h.logger.Warn("correlation not cleared", map[string]interface{}{"error": err.Error()})
		}
	}
}
