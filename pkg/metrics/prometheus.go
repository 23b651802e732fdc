// Package metrics provides Prometheus metrics for the catalogd ingestion service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Fetch stage
	fetchPages        *prometheus.CounterVec
	fetchStops        *prometheus.CounterVec
	fetchRecords      prometheus.Counter
	fetchPageDuration prometheus.Histogram

	// Normalize stage
	normalizeRejected *prometheus.CounterVec

	// Store stage
	storeApplied       *prometheus.CounterVec
	storeRecordErrors  prometheus.Counter
	storeCommits       *prometheus.CounterVec
	storeBatchDuration prometheus.Histogram
	catalogEntities    prometheus.Gauge

	// Orchestrator
	ingestRuns     *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	ingestApplied  prometheus.Counter

	// Jobs
	jobsProcessed  *prometheus.CounterVec
	jobsDuplicate  prometheus.Counter
	schedulerTicks prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level recorders

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // exported through GetRegistry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "catalogd",
		subsystem:        "ingest",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.fetchPages = auto.NewCounterVec(m.counterOpts("fetch_pages_total",
		"Source pages requested, by outcome"), []string{"outcome"})
	m.fetchStops = auto.NewCounterVec(m.counterOpts("fetch_stops_total",
		"Pagination stops, by reason"), []string{"reason"})
	m.fetchRecords = auto.NewCounter(m.counterOpts("fetch_records_total",
		"Raw records accepted from the source"))
	m.fetchPageDuration = auto.NewHistogram(m.histogramOpts("fetch_page_duration_milliseconds",
		"Duration of a single source page request"))

	m.normalizeRejected = auto.NewCounterVec(m.counterOpts("normalize_rejected_total",
		"Raw records rejected by the normalizer, by reason"), []string{"reason"})

	m.storeApplied = auto.NewCounterVec(m.counterOpts("store_applied_total",
		"Records staged by the catalog store, by operation"), []string{"op"})
	m.storeRecordErrors = auto.NewCounter(m.counterOpts("store_record_errors_total",
		"Records skipped because their lookup or write failed"))
	m.storeCommits = auto.NewCounterVec(m.counterOpts("store_commits_total",
		"Batch commits, by outcome"), []string{"outcome"})
	m.storeBatchDuration = auto.NewHistogram(m.histogramOpts("store_batch_duration_milliseconds",
		"Duration of one upsert batch including commit"))
	m.catalogEntities = auto.NewGauge(m.gaugeOpts("catalog_entities",
		"Number of catalog entities currently stored"))

	m.ingestRuns = auto.NewCounterVec(m.counterOpts("runs_total",
		"Ingestion runs, by outcome"), []string{"outcome"})
	m.ingestDuration = auto.NewHistogram(m.histogramOpts("run_duration_milliseconds",
		"End-to-end duration of an ingestion run"))
	m.ingestApplied = auto.NewCounter(m.counterOpts("applied_records_total",
		"Records committed by ingestion runs"))

	m.jobsProcessed = auto.NewCounterVec(m.counterOpts("jobs_processed_total",
		"Asynchronous ingest jobs finished, by outcome"), []string{"outcome"})
	m.jobsDuplicate = auto.NewCounter(m.counterOpts("jobs_duplicate_total",
		"Job submissions coalesced with a pending job for the same query"))
	m.schedulerTicks = auto.NewCounter(m.counterOpts("scheduler_ticks_total",
		"Scheduled ingestion rounds"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"HTTP errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size over capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total",
		"Enqueue attempts rejected because the queue was full or closed"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Running workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Time a worker spent on one job"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Jobs that failed inside a worker"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// Fetch stage.

// RecordFetchPage counts one page request with outcome ok, status_error,
// transport_error or decode_error.
func RecordFetchPage(outcome string, latencyMs float64) {
	globalManager.fetchPages.WithLabelValues(outcome).Inc()
	globalManager.fetchPageDuration.Observe(latencyMs)
}

// RecordFetchStop counts why pagination ended.
func RecordFetchStop(reason string) {
	globalManager.fetchStops.WithLabelValues(reason).Inc()
}

// RecordFetchedRecords adds n accepted raw records.
func RecordFetchedRecords(n int) {
	globalManager.fetchRecords.Add(float64(n))
}

// Normalize stage.

// RecordRejected counts one normalizer rejection.
func RecordRejected(reason string) {
	globalManager.normalizeRejected.WithLabelValues(reason).Inc()
}

// Store stage.

// RecordStoreApplied counts one staged insert or update.
func RecordStoreApplied(op string) {
	globalManager.storeApplied.WithLabelValues(op).Inc()
}

// RecordStoreRecordError counts one skipped record.
func RecordStoreRecordError() {
	globalManager.storeRecordErrors.Inc()
}

// RecordCommit counts a batch commit with outcome ok or failed.
func RecordCommit(outcome string, latencyMs float64) {
	globalManager.storeCommits.WithLabelValues(outcome).Inc()
	globalManager.storeBatchDuration.Observe(latencyMs)
}

// UpdateCatalogEntities sets the stored entity gauge.
func UpdateCatalogEntities(count int) {
	globalManager.catalogEntities.Set(float64(count))
}

// Orchestrator.

// RecordIngest records one finished run.
func RecordIngest(outcome string, applied int, latencyMs float64) {
	globalManager.ingestRuns.WithLabelValues(outcome).Inc()
	globalManager.ingestApplied.Add(float64(applied))
	globalManager.ingestDuration.Observe(latencyMs)
}

// Jobs.

// RecordJobProcessed counts one finished job.
func RecordJobProcessed(outcome string) {
	globalManager.jobsProcessed.WithLabelValues(outcome).Inc()
}

// RecordJobDuplicate counts one coalesced submission.
func RecordJobDuplicate() {
	globalManager.jobsDuplicate.Inc()
}

// RecordSchedulerTick counts one scheduler round.
func RecordSchedulerTick() {
	globalManager.schedulerTicks.Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// Queue.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Workers.

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
