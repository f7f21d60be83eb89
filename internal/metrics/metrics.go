package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for Sealdoc
type Metrics struct {
	// Template counters
	TemplatesCreatedTotal  prometheus.Counter
	TemplatesUpdatedTotal  prometheus.Counter
	TemplatesArchivedTotal prometheus.Counter
	TemplatesDeletedTotal  *prometheus.CounterVec

	// Ingestion counters
	DocumentsIngestedTotal *prometheus.CounterVec
	FieldsExtractedTotal   prometheus.Counter

	// Webhook counters
	WebhookJobsEnqueuedTotal prometheus.Counter
	WebhookDeliveriesTotal   *prometheus.CounterVec
	WebhookJobsDeferredTotal prometheus.Counter

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// Queue gauges
	QueuePending  prometheus.Gauge
	QueueDeferred prometheus.Gauge
	QueueDead     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TemplatesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sealdoc_templates_created_total",
				Help: "Total number of templates created",
			},
		),
		TemplatesUpdatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sealdoc_templates_updated_total",
				Help: "Total number of template updates",
			},
		),
		TemplatesArchivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sealdoc_templates_archived_total",
				Help: "Total number of templates archived",
			},
		),
		TemplatesDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealdoc_templates_deleted_total",
				Help: "Total number of template deletions",
			},
			[]string{"mode"},
		),

		DocumentsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealdoc_documents_ingested_total",
				Help: "Total number of documents acquired and stored",
			},
			[]string{"source"},
		),
		FieldsExtractedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sealdoc_fields_extracted_total",
				Help: "Total number of form fields extracted from documents",
			},
		),

		WebhookJobsEnqueuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sealdoc_webhook_jobs_enqueued_total",
				Help: "Total number of webhook delivery jobs enqueued",
			},
		),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealdoc_webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts",
			},
			[]string{"event", "result"},
		),
		WebhookJobsDeferredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sealdoc_webhook_jobs_deferred_total",
				Help: "Total number of webhook jobs deferred for retry",
			},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealdoc_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sealdoc_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealdoc_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		QueuePending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sealdoc_queue_pending",
				Help: "Number of webhook jobs waiting for delivery",
			},
		),
		QueueDeferred: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sealdoc_queue_deferred",
				Help: "Number of webhook jobs awaiting retry",
			},
		),
		QueueDead: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sealdoc_queue_dead",
				Help: "Number of webhook jobs in the dead letter queue",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.TemplatesCreatedTotal,
		m.TemplatesUpdatedTotal,
		m.TemplatesArchivedTotal,
		m.TemplatesDeletedTotal,
		m.DocumentsIngestedTotal,
		m.FieldsExtractedTotal,
		m.WebhookJobsEnqueuedTotal,
		m.WebhookDeliveriesTotal,
		m.WebhookJobsDeferredTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.QueuePending,
		m.QueueDeferred,
		m.QueueDead,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncTemplatesCreated increments the templates created counter
func IncTemplatesCreated() {
	m := Global()
	if m != nil {
		m.TemplatesCreatedTotal.Inc()
	}
}

// IncTemplatesUpdated increments the templates updated counter
func IncTemplatesUpdated() {
	m := Global()
	if m != nil {
		m.TemplatesUpdatedTotal.Inc()
	}
}

// IncTemplatesArchived increments the templates archived counter
func IncTemplatesArchived() {
	m := Global()
	if m != nil {
		m.TemplatesArchivedTotal.Inc()
	}
}

// IncTemplatesDeleted increments the templates deleted counter.
// Mode is "soft" or "permanent".
func IncTemplatesDeleted(mode string) {
	m := Global()
	if m != nil {
		m.TemplatesDeletedTotal.WithLabelValues(mode).Inc()
	}
}

// IncDocumentsIngested increments the documents ingested counter.
// Source is "upload" or "url".
func IncDocumentsIngested(source string) {
	m := Global()
	if m != nil {
		m.DocumentsIngestedTotal.WithLabelValues(source).Inc()
	}
}

// AddFieldsExtracted adds to the extracted fields counter
func AddFieldsExtracted(n int) {
	m := Global()
	if m != nil && n > 0 {
		m.FieldsExtractedTotal.Add(float64(n))
	}
}

// IncWebhookJobsEnqueued increments the enqueued job counter
func IncWebhookJobsEnqueued() {
	m := Global()
	if m != nil {
		m.WebhookJobsEnqueuedTotal.Inc()
	}
}

// IncWebhookDeliveries increments the delivery attempt counter.
// Result is "success" or "failure".
func IncWebhookDeliveries(event, result string) {
	m := Global()
	if m != nil {
		m.WebhookDeliveriesTotal.WithLabelValues(event, result).Inc()
	}
}

// IncWebhookJobsDeferred increments the deferred job counter
func IncWebhookJobsDeferred() {
	m := Global()
	if m != nil {
		m.WebhookJobsDeferredTotal.Inc()
	}
}

// IncAPIErrors increments API error counter
func IncAPIErrors(errorType string) {
	m := Global()
	if m != nil {
		m.APIErrorsTotal.WithLabelValues(errorType).Inc()
	}
}
