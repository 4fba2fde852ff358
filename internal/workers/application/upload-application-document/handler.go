package uploadapplicationdocument

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"tender-workflow/internal/common/camunda"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/observability"
	"tender-workflow/internal/tender/requirement"
	"tender-workflow/internal/tender/upload"
)

const (
	TaskType = "upload-application-document"
)

// Correlations scopes the applicationId store to one (tender, bidder) pair.
type Correlations interface {
	For(tenderID, bidderID string) upload.IDStore
}

type Dependencies struct {
	Uploader     upload.Uploader
	Correlations Correlations
}

// Handler uploads one application document. The first applicationId the
// backend assigns is stored per (tender, bidder), so later uploads and a
// returning bidder keep correlating to the same application.
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
	stage, err := requirement.ParseStage(input.Stage)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if input.FieldName == "" || input.FileName == "" || len(input.Content) == 0 {
		return nil, errors.NewValidationError("fieldName, fileName and content are required")
	}
	if h.config.MaxDocumentBytes > 0 && len(input.Content) > h.config.MaxDocumentBytes {
		return nil, errors.NewValidationError(fmt.Sprintf("document exceeds %d bytes", h.config.MaxDocumentBytes))
	}

	deps := upload.Dependencies{Uploader: h.deps.Uploader}
	if h.deps.Correlations != nil {
		deps.IDStore = h.deps.Correlations.For(input.TenderID, input.BidderID)
	}
	tracker := upload.NewTracker(input.TenderID, deps, h.logger)
	defer tracker.Close()

	if err := tracker.Resume(ctx); err != nil {
		h.logger.Warn("correlation lookup failed, starting fresh", map[string]interface{}{
			"tenderId": input.TenderID,
			"error":    err.Error(),
		})
	}
	resumed := tracker.ApplicationID() != ""

	key := upload.Key{Stage: stage, FieldName: input.FieldName}
	if err := tracker.Upload(ctx, key, upload.File{
		Name:        input.FileName,
		ContentType: input.ContentType,
		Content:     input.Content,
	}); err != nil {
		return nil, err
	}

	out := &Output{
		ApplicationID: tracker.ApplicationID(),
		Stage:         stage.String(),
		FieldName:     input.FieldName,
		Status:        string(tracker.Status(key)),
		Resumed:       resumed,
	}
	h.logger.Info("application document uploaded", map[string]interface{}{
		"tenderId":      input.TenderID,
		"applicationId": out.ApplicationID,
		"key":           key.String(),
	})
	return out, nil
}
