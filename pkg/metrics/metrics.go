package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Sync metrics
	SyncRunsTotal        *prometheus.CounterVec
	SyncRunDuration      *prometheus.HistogramVec
	SyncRunsInProgress   prometheus.Gauge
	SyncRecordsProcessed *prometheus.CounterVec
	SyncRecordsSkipped   *prometheus.CounterVec

	// External source metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec

	// Warehouse metrics
	MergeOutcomes   *prometheus.CounterVec
	TableOperations *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default
// registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		SyncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadsync_runs_total",
				Help: "Total number of reconciliation runs",
			},
			[]string{"status", "stage"},
		),

		SyncRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadsync_run_duration_seconds",
				Help:    "Reconciliation run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),

		SyncRunsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadsync_runs_in_progress",
				Help: "Number of reconciliation runs currently in progress",
			},
		),

		SyncRecordsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadsync_records_processed_total",
				Help: "Total number of records produced per pipeline stage",
			},
			[]string{"stage"},
		),

		SyncRecordsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadsync_records_skipped_total",
				Help: "Total number of input rows dropped during canonicalization",
			},
			[]string{"source", "reason"},
		),

		ExternalAPICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),

		MergeOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadsync_merge_records_total",
				Help: "Records written by merges, by outcome",
			},
			[]string{"table", "outcome"},
		),

		TableOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadsync_table_operations_total",
				Help: "Warehouse table operations",
			},
			[]string{"table", "operation", "status"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *Metrics) RecordSyncRun(status, stage string, duration time.Duration) {
	m.SyncRunsTotal.WithLabelValues(status, stage).Inc()
	m.SyncRunDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *Metrics) RecordStageRecords(stage string, count int) {
	m.SyncRecordsProcessed.WithLabelValues(stage).Add(float64(count))
}

func (m *Metrics) RecordSkipped(source, reason string, count int) {
	m.SyncRecordsSkipped.WithLabelValues(source, reason).Add(float64(count))
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

func (m *Metrics) RecordMerge(table string, total, newRecords, statusUpdates int) {
	m.MergeOutcomes.WithLabelValues(table, "total").Add(float64(total))
	m.MergeOutcomes.WithLabelValues(table, "new").Add(float64(newRecords))
	m.MergeOutcomes.WithLabelValues(table, "status_update").Add(float64(statusUpdates))
}

func (m *Metrics) RecordTableOperation(table, operation, status string) {
	m.TableOperations.WithLabelValues(table, operation, status).Inc()
}

// sync runs in progress
func (m *Metrics) IncSyncRunsInProgress() {
	m.SyncRunsInProgress.Inc()
}

// sync runs in progress
func (m *Metrics) DecSyncRunsInProgress() {
	m.SyncRunsInProgress.Dec()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
