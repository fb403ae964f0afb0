// Package metrics provides Prometheus metrics for the archetype pipeline.
package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stages used as label values.
const (
	StageClean = "clean"
	StageGraph = "graph"
	StageStats = "stats"
)

const defaultRefreshInterval = 5 * time.Second

// Manager owns every collector exported by the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Record flow
	recordsRead     *prometheus.CounterVec
	recordsEmitted  *prometheus.CounterVec
	recordsRejected *prometheus.CounterVec

	// Dedup
	dedupGroups     prometheus.Counter
	dedupSuppressed prometheus.Counter

	// Graph
	observations     *prometheus.CounterVec
	combinerPartials prometheus.Counter
	tableRows        *prometheus.GaugeVec

	// Stats
	edgesScored  prometheus.Counter
	edgesDropped *prometheus.CounterVec

	// Runtime of stages, queues and workers
	stageDuration *prometheus.HistogramVec
	queueDepth    *prometheus.GaugeVec
	workersActive *prometheus.GaugeVec
	workerErrors  *prometheus.CounterVec

	// HTTP exposition
	httpRequests *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// global is the manager behind the Record* helpers and its registry.
type global struct {
	manager  *Manager
	registry *prometheus.Registry
}

var current atomic.Pointer[global] //nolint:gochecknoglobals // singleton used by Record* helpers

func init() {
	reg := prometheus.NewRegistry()
	current.Store(&global{manager: NewManager(WithPrometheusRegistry(reg)), registry: reg})
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. Counters restart from zero. Call it before serving GetRegistry.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	opts = append(opts, WithPrometheusRegistry(reg))
	current.Store(&global{manager: NewManager(opts...), registry: reg})
}

func mgr() *Manager { return current.Load().manager }

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "clash",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		refreshInterval:  defaultRefreshInterval,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.recordsRead = auto.NewCounterVec(m.counterOpts("records_read_total",
		"Input lines read by each stage"), []string{"stage"})
	m.recordsEmitted = auto.NewCounterVec(m.counterOpts("records_emitted_total",
		"Output rows written by each stage"), []string{"stage"})
	m.recordsRejected = auto.NewCounterVec(m.counterOpts("records_rejected_total",
		"Input lines dropped by validation, by stage and reason"), []string{"stage", "reason"})

	m.dedupGroups = auto.NewCounter(m.counterOpts("dedup_groups_total",
		"Dedup groups reduced"))
	m.dedupSuppressed = auto.NewCounter(m.counterOpts("dedup_suppressed_total",
		"Records suppressed as duplicates"))

	m.observations = auto.NewCounterVec(m.counterOpts("observations_total",
		"Node and edge observations emitted by the graph builder"), []string{"kind"})
	m.combinerPartials = auto.NewCounter(m.counterOpts("combiner_partials_total",
		"Partial aggregates shipped to the global aggregator"))
	m.tableRows = auto.NewGaugeVec(m.gaugeOpts("table_rows",
		"Rows in the materialized aggregate tables"), []string{"table"})

	m.edgesScored = auto.NewCounter(m.counterOpts("edges_scored_total",
		"Edges scored against the node table"))
	m.edgesDropped = auto.NewCounterVec(m.counterOpts("edges_dropped_total",
		"Edges excluded from scoring"), []string{"reason"})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stage_duration_seconds",
		Help:        "Wall time of each pipeline stage",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"stage"})
	m.queueDepth = auto.NewGaugeVec(m.gaugeOpts("queue_depth",
		"Items waiting in a stage queue"), []string{"queue"})
	m.workersActive = auto.NewGaugeVec(m.gaugeOpts("workers_active",
		"Workers currently running per pool"), []string{"pool"})
	m.workerErrors = auto.NewCounterVec(m.counterOpts("worker_errors_total",
		"Handler errors that aborted a pool"), []string{"pool"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests served by the metrics listener"), []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes",
		"Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines",
		"Live goroutines"))
}

// SampleRuntime updates the system gauges every refresh interval until ctx is done.
func (m *Manager) SampleRuntime(ctx context.Context) {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()
	for {
		m.sampleOnce()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) sampleOnce() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapInuse))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// ValidateStage reports whether stage is one of the known stage labels.
func ValidateStage(stage string) error {
	switch stage {
	case StageClean, StageGraph, StageStats:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
}

// Global helpers.

// RecordRead counts n input lines read by stage.
func RecordRead(stage string, n int) {
	mgr().recordsRead.WithLabelValues(stage).Add(float64(n))
}

// RecordEmitted counts n output rows written by stage.
func RecordEmitted(stage string, n int) {
	mgr().recordsEmitted.WithLabelValues(stage).Add(float64(n))
}

// RecordRejected counts one dropped line.
func RecordRejected(stage, reason string) {
	mgr().recordsRejected.WithLabelValues(stage, reason).Inc()
}

// RecordDedupGroup counts one reduced group and the records it suppressed.
func RecordDedupGroup(suppressed int) {
	mgr().dedupGroups.Inc()
	mgr().dedupSuppressed.Add(float64(suppressed))
}

// RecordObservations counts emitted observations of the given kind (node or edge).
func RecordObservations(kind string, n int) {
	mgr().observations.WithLabelValues(kind).Add(float64(n))
}

// RecordCombinerPartials counts partial aggregates shipped by a combiner or passthrough.
func RecordCombinerPartials(n int) {
	mgr().combinerPartials.Add(float64(n))
}

// UpdateTableRows sets the row count of a materialized table.
func UpdateTableRows(table string, n int) {
	mgr().tableRows.WithLabelValues(table).Set(float64(n))
}

// RecordEdgeScored counts one scored edge.
func RecordEdgeScored() {
	mgr().edgesScored.Inc()
}

// RecordEdgeDropped counts one edge left out of scoring.
func RecordEdgeDropped(reason string) {
	mgr().edgesDropped.WithLabelValues(reason).Inc()
}

// RecordStageDuration observes the wall time of a finished stage.
func RecordStageDuration(stage string, d time.Duration) {
	mgr().stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// UpdateQueueDepth sets the backlog of a named queue.
func UpdateQueueDepth(queue string, depth int) {
	mgr().queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// AddWorkersActive moves the active worker gauge of a pool by delta.
func AddWorkersActive(pool string, delta int) {
	mgr().workersActive.WithLabelValues(pool).Add(float64(delta))
}

// RecordWorkerError counts a handler error in a pool.
func RecordWorkerError(pool string) {
	mgr().workerErrors.WithLabelValues(pool).Inc()
}

// RecordHTTPRequest counts a request served by the metrics listener.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	mgr().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// SampleRuntime samples runtime gauges of the global manager until ctx is done.
func SampleRuntime(ctx context.Context) {
	mgr().SampleRuntime(ctx)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}
