// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// DocumentUploads counts finished uploads by stage and outcome (done|failed).
	DocumentUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_document_uploads_total",
			Help: "Application document uploads by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	DocumentUploadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tender_document_uploads_in_flight",
			Help: "Document uploads currently waiting on the backend",
		},
	)

	PaymentPushRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_push_requests_total",
			Help: "USSD push requests by outcome",
		},
		[]string{"outcome"},
	)

	PaymentPollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_poll_ticks_total",
			Help: "Payment enquiry calls by returned status",
		},
		[]string{"status"},
	)

	PaymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmation_outcomes_total",
			Help: "Terminal outcomes of payment confirmation sessions",
		},
		[]string{"outcome"},
	)

	ApplicationSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_application_submissions_total",
			Help: "Final application submissions by outcome",
		},
		[]string{"outcome"},
	)
)
