package validaterequirementschema

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"tender-workflow/internal/common/camunda"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/observability"
	"tender-workflow/internal/tender/requirement"
)

const (
	TaskType = "validate-requirement-schema"
)

// Handler runs the submission-time checks on a requirements payload before
// the process persists it with createTender or updateTender.
type Handler struct {
	config *Config
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
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

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	raw := input.Requirements
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("[]")
	}

	items, err := requirement.ParsePayload(raw)
	if err != nil {
		h.logger.Warn("requirement schema rejected", map[string]interface{}{
			"tenderId": input.TenderID,
			"error":    errors.MessageOf(err),
		})
		return nil, err
	}

	perStage := make(map[string]int)
	for stage, group := range requirement.GroupByStage(items) {
		perStage[stage.String()] = len(group)
	}
	total, _ := requirement.Total(items).Float64()

	h.logger.Info("requirement schema valid", map[string]interface{}{
		"tenderId":  input.TenderID,
		"itemCount": len(items),
	})
	return &Output{
		Valid:     true,
		Total:     total,
		ItemCount: len(items),
		PerStage:  perStage,
	}, nil
}
