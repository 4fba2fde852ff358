package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"

	"tender-workflow/internal/common/config"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/metrics"
	"tender-workflow/internal/common/observability"
)

// commandTimeout bounds complete/fail commands sent after the job body ran.
const commandTimeout = 10 * time.Second

// JobHandler is implemented by every worker under internal/workers.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Registry keeps the opened job workers so they can be closed on shutdown.
type Registry struct {
	client  zbc.Client
	logger  logger.Logger
	workers map[string]worker.JobWorker
}

func NewRegistry(client zbc.Client, log logger.Logger) *Registry {
	return &Registry{client: client, logger: log, workers: make(map[string]worker.JobWorker)}
}

// Start opens a job worker for taskType unless it is disabled in config.
func (r *Registry) Start(taskType string, wcfg config.WorkerConfig, handler JobHandler) {
	if !wcfg.Enabled {
		r.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	r.workers[taskType] = r.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	r.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Running lists the task types with an open worker.
func (r *Registry) Running() []string {
	out := make([]string, 0, len(r.workers))
	for t := range r.workers {
		out = append(out, t)
	}
	return out
}

// Stop closes every worker. In-flight handlers run to completion.
func (r *Registry) Stop() {
	for taskType, w := range r.workers {
		w.Close()
		w.AwaitClose()
		r.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
}

// CompleteJob sends the completion command with output as job variables.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	log.Info("job completed", map[string]interface{}{"jobKey": job.Key})
}

// Runner carries the lifecycle shared by every handler: timeout, span,
// metrics, completion and error mapping.
type Runner struct {
	TaskType string
	Timeout  time.Duration
	Obs      *observability.Observability
	Errors   *errors.ErrorHandler
	Logger   logger.Logger
}

func NewRunner(taskType string, timeout time.Duration, obs *observability.Observability, log logger.Logger) *Runner {
	return &Runner{
		TaskType: taskType,
		Timeout:  timeout,
		Obs:      obs,
		Errors:   errors.NewErrorHandler(log),
		Logger:   log,
	}
}

// Run executes body and completes the job with its output, or hands the
// error to the ErrorHandler for retry or BPMN error.
func (r *Runner) Run(client worker.JobClient, job entities.Job, body func(ctx context.Context) (interface{}, error)) {
	start := time.Now()
	r.Logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
		"retries":            job.Retries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()
	ctx, span := r.Obs.StartSpan(ctx, "job."+r.TaskType, attribute.Int64("job.key", job.Key))
	defer span.End()

	output, err := body(ctx)

	cmdCtx, cmdCancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cmdCancel()

	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(r.TaskType).Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		metrics.WorkerJobsFailed.WithLabelValues(r.TaskType, string(errors.CodeOf(err))).Inc()
		r.Obs.RecordJobProcessed(cmdCtx, r.TaskType, "failed")
		r.Obs.RecordJobDuration(cmdCtx, r.TaskType, elapsed, "failed")
		r.Errors.HandleJobError(cmdCtx, client, job, err)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.TaskType).Inc()
	r.Obs.RecordJobProcessed(cmdCtx, r.TaskType, "completed")
	r.Obs.RecordJobDuration(cmdCtx, r.TaskType, elapsed, "completed")
	CompleteJob(cmdCtx, client, job, output, r.Logger)
}
