package observer

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for lane task metrics
	laneTaskLabels = []string{"lane", "organization_id"}
	// Labels for tracking specific processing actions
	laneActionLabels = []string{"lane", "organization_id", "action", "error_type"}
	// Labels for webhook intake metrics
	webhookLabels = []string{"organization", "outcome"}

	// Lane Task Counters
	TasksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_tasks_received_total",
			Help: "Total number of tasks received from NATS, labeled by lane.",
		},
		laneTaskLabels,
	)
	TasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_tasks_processed_total",
			Help: "Total number of tasks successfully processed and acknowledged, labeled by lane.",
		},
		laneTaskLabels,
	)
	TasksFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_tasks_failed_total",
			Help: "Total number of tasks that failed processing (resulting in Nak or error), labeled by lane.",
		},
		laneTaskLabels,
	)

	// Histogram for Task Processing Duration
	TaskProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_webhook_pipeline_task_processing_duration_seconds",
			Help:    "Histogram of task processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		laneTaskLabels,
	)

	// Counter for Specific Actions (ack, nak, nak_with_delay, term)
	TaskProcessingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_task_processing_actions_total",
			Help: "Total count of specific actions taken after task processing, labeled by error type.",
		},
		laneActionLabels,
	)

	// Global metrics instance
	Metrics *metricsStore
)

// Metrics related to webhook intake
var (
	webhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_webhook_requests_total",
			Help: "Total number of webhook requests, labeled by outcome (success, ignored, forbidden, malformed).",
		},
		webhookLabels,
	)
	webhookRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_webhook_pipeline_webhook_request_duration_seconds",
			Help:    "Histogram of webhook request handling durations.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		webhookLabels,
	)
	admissionDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_admission_drops_total",
			Help: "Total number of messages dropped by the admission gate, labeled by organization.",
		},
		[]string{"organization_id"},
	)
	dedupSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_dedup_skips_total",
			Help: "Total number of inbound messages skipped as duplicates, labeled by organization.",
		},
		[]string{"organization_id"},
	)
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "organization_id", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_webhook_pipeline_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// Notifier worker pool metrics
var (
	notifierLabels       = []string{"organization_id"}
	notifierStatusLabels = []string{"organization_id", "status"}

	notifierTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_notifier_tasks_submitted_total",
			Help: "Total number of notification tasks submitted to the worker pool.",
		},
		notifierLabels,
	)
	notifierTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_notifier_tasks_processed_total",
			Help: "Total number of notification tasks processed by the worker pool, labeled by final status.",
		},
		notifierStatusLabels,
	)
	notifierProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_webhook_pipeline_notifier_processing_duration_seconds",
			Help:    "Histogram of processing durations for notification tasks.",
			Buckets: prometheus.DefBuckets,
		},
		notifierLabels,
	)
	notifierQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wa_webhook_pipeline_notifier_queue_length",
		Help: "Approximate number of tasks waiting in the notifier worker pool queue.",
	})
)

// Media fetch metrics
var (
	mediaFetchLabels = []string{"organization_id", "status"}

	mediaFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_pipeline_media_fetch_total",
			Help: "Total number of media fetch attempts, labeled by final status.",
		},
		mediaFetchLabels,
	)
	mediaFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_webhook_pipeline_media_fetch_duration_seconds",
			Help:    "Histogram of media fetch and store durations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"organization_id"},
	)
)

// metricsStore holds references to all Prometheus metrics.
type metricsStore struct{}

// InitMetrics initializes and registers the Prometheus metrics if enabled.
// Call this function during application startup.
func InitMetrics(enabled bool) {
	if !enabled {
		metricsEnabled = false
		return
	}

	metricsEnabled = true
	Metrics = &metricsStore{}
}

func orgLabel(orgID int64) string {
	if orgID <= 0 {
		return "unknown"
	}
	return strconv.FormatInt(orgID, 10)
}

// IncTasksReceived increments the tasks received counter.
func IncTasksReceived(lane string, orgID int64) {
	if !metricsEnabled {
		return
	}
	TasksReceivedTotal.WithLabelValues(lane, orgLabel(orgID)).Inc()
}

// IncTasksProcessed increments the tasks processed counter.
func IncTasksProcessed(lane string, orgID int64) {
	if !metricsEnabled {
		return
	}
	TasksProcessedTotal.WithLabelValues(lane, orgLabel(orgID)).Inc()
}

// IncTasksFailed increments the tasks failed counter.
func IncTasksFailed(lane string, orgID int64) {
	if !metricsEnabled {
		return
	}
	TasksFailedTotal.WithLabelValues(lane, orgLabel(orgID)).Inc()
}

// ObserveTaskProcessingDuration records the processing time for one task.
func ObserveTaskProcessingDuration(lane string, orgID int64, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	TaskProcessingDurationSeconds.WithLabelValues(lane, orgLabel(orgID)).Observe(duration.Seconds())
}

// IncTaskProcessingAction increments the counter for a specific processing outcome.
func IncTaskProcessingAction(lane string, orgID int64, action, errorType string) {
	if !metricsEnabled {
		return
	}
	TaskProcessingActionsTotal.WithLabelValues(lane, orgLabel(orgID), action, SanitizeErrorType(errorType)).Inc()
}

// IncWebhookRequest increments the webhook request counter.
func IncWebhookRequest(identifier, outcome string) {
	if !metricsEnabled {
		return
	}
	if identifier == "" {
		identifier = "unknown"
	}
	webhookRequestsTotal.WithLabelValues(identifier, outcome).Inc()
}

// ObserveWebhookRequestDuration records the handling time for one webhook request.
func ObserveWebhookRequestDuration(identifier, outcome string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	if identifier == "" {
		identifier = "unknown"
	}
	webhookRequestDurationSeconds.WithLabelValues(identifier, outcome).Observe(duration.Seconds())
}

// IncAdmissionDrop increments the admission drop counter.
func IncAdmissionDrop(orgID int64) {
	if !metricsEnabled {
		return
	}
	admissionDropsTotal.WithLabelValues(orgLabel(orgID)).Inc()
}

// IncDedupSkip increments the duplicate skip counter.
func IncDedupSkip(orgID int64) {
	if !metricsEnabled {
		return
	}
	dedupSkipsTotal.WithLabelValues(orgLabel(orgID)).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity string, orgID int64, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, orgLabel(orgID), status).Observe(duration.Seconds())
}

// SanitizeErrorType maps specific errors or provides a default category.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "missing field"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "upstream"), strings.Contains(errStr, "graph"):
		return "upstream"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}

// --- Notifier Metric Helpers ---

// IncNotifierTasksSubmitted increments the counter for submitted notification tasks.
func IncNotifierTasksSubmitted(orgID int64) {
	if Metrics != nil {
		notifierTasksSubmittedTotal.WithLabelValues(orgLabel(orgID)).Inc()
	}
}

// IncNotifierTasksProcessed increments the counter for processed notification tasks by status.
func IncNotifierTasksProcessed(orgID int64, status string) {
	if Metrics != nil {
		notifierTasksProcessedTotal.WithLabelValues(orgLabel(orgID), status).Inc()
	}
}

// ObserveNotifierProcessingDuration records the processing time for a notification task.
func ObserveNotifierProcessingDuration(orgID int64, duration time.Duration) {
	if Metrics != nil {
		notifierProcessingDurationSeconds.WithLabelValues(orgLabel(orgID)).Observe(duration.Seconds())
	}
}

// SetNotifierQueueLength sets the current notifier queue length.
func SetNotifierQueueLength(length int) {
	if Metrics != nil {
		notifierQueueLength.Set(float64(length))
	}
}

// --- Media Metric Helpers ---

// IncMediaFetch increments the media fetch counter by final status.
func IncMediaFetch(orgID int64, status string) {
	if Metrics != nil {
		mediaFetchTotal.WithLabelValues(orgLabel(orgID), status).Inc()
	}
}

// ObserveMediaFetchDuration records the fetch and store time for one attachment.
func ObserveMediaFetchDuration(orgID int64, duration time.Duration) {
	if Metrics != nil {
		mediaFetchDurationSeconds.WithLabelValues(orgLabel(orgID)).Observe(duration.Seconds())
	}
}
