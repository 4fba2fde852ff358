package checkapplicationgate

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/shopspring/decimal"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/camunda"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/observability"
	"tender-workflow/internal/payment"
	"tender-workflow/internal/tender/upload"
	"tender-workflow/internal/tender/wizard"
)

const (
	TaskType = "check-application-gate"
)

type TenderReader interface {
	GetTenderDetails(ctx context.Context, tenderID string) (*backend.TenderDetails, error)
}

type Gate interface {
	Gate(ctx context.Context, bidderID string, threshold decimal.Decimal, alreadyPaid bool) (*payment.GateResult, error)
}

// Correlations resolves the applicationId remembered for a returning bidder.
type Correlations interface {
	For(tenderID, bidderID string) upload.IDStore
}

type Dependencies struct {
	Tenders      TenderReader
	Gate         Gate
	Correlations Correlations
}

// Handler decides what a bidder sees when opening a tender: the read-only
// notice for a submitted application, or the fee gate and the wizard steps.
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
	if input.TenderID == "" || input.BidderID == "" {
		return nil, errors.NewValidationError("tenderId and bidderId are required")
	}

	tender, err := h.deps.Tenders.GetTenderDetails(ctx, input.TenderID)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Threshold:     tender.ApplicationFee.String(),
		ApplicationID: h.applicationID(ctx, input, tender),
		Checklist:     []ChecklistEntry{},
	}
	for _, c := range wizard.BuildChecklist(tender.Requirements) {
		out.Checklist = append(out.Checklist, ChecklistEntry{Stage: c.Stage.String(), Fields: c.Fields})
	}

	if tender.ApplicationStatus == backend.ApplicationStatusSubmitted {
		// The gate is not evaluated for a locked application; gateState stays empty.
		out.Locked = true
		out.Steps = []string{}
		h.logger.Info("application already submitted", map[string]interface{}{
			"tenderId":      input.TenderID,
			"applicationId": out.ApplicationID,
		})
		return out, nil
	}

	gate, err := h.deps.Gate.Gate(ctx, input.BidderID, tender.ApplicationFee, tender.FeePaid)
	if err != nil {
		return nil, err
	}
	out.GateState = string(gate.State)
	out.GateOpen = gate.Open()
	if !gate.Balance.IsZero() {
		out.Balance = gate.Balance.String()
	}

	for _, s := range wizard.BuildSteps(tender.ApplicationFee, h.config.PaymentStepOnZeroFee) {
		out.Steps = append(out.Steps, s.String())
	}

	h.logger.Info("application gate evaluated", map[string]interface{}{
		"tenderId":  input.TenderID,
		"gateState": out.GateState,
		"steps":     len(out.Steps),
	})
	return out, nil
}

// applicationID prefers the backend's id and falls back to the correlation store.
func (h *Handler) applicationID(ctx context.Context, input *Input, tender *backend.TenderDetails) string {
	if tender.ApplicationID != "" {
		return tender.ApplicationID
	}
	if h.deps.Correlations == nil {
		return ""
	}
	id, err := h.deps.Correlations.For(input.TenderID, input.BidderID).Get(ctx)
	if err != nil {
		h.logger.Warn("correlation lookup failed", map[string]interface{}{
			"tenderId": input.TenderID,
			"error":    err.Error(),
		})
		return ""
	}
	return id
}
