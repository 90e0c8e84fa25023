// Package metrics provides Prometheus metrics for the teamlens pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns all Prometheus collectors for a pipeline run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Fetch metrics - source-event provider
	apiRequests     *prometheus.CounterVec
	apiRetries      prometheus.Counter
	apiErrors       *prometheus.CounterVec
	reposFetched    prometheus.Counter
	eventsCollected *prometheus.CounterVec

	// Pipeline metrics - aggregation through ranking
	eventsAggregated  *prometheus.CounterVec
	eventsSkipped     *prometheus.CounterVec
	identitiesTotal   prometheus.Gauge
	identityMatches   *prometheus.CounterVec
	ticketsNormalized prometheus.Counter
	ticketsDiscarded  prometheus.Counter
	recordsMerged     *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec

	// Analyzer metrics
	analyzerCalls    *prometheus.CounterVec
	analyzerFallback prometheus.Counter
	analyzerLatency  prometheus.Histogram

	// Task pool metrics
	poolTasks       *prometheus.CounterVec
	poolTaskLatency prometheus.Histogram
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the subsystem for all metrics.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager()
}

// NewManager creates a new metrics manager with its own registry, keeping the
// default Go runtime collectors out of the scrape output.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "teamlens",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.apiRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "api_requests_total",
		Help: "Requests issued to external providers, by provider.",
	}, []string{"provider"})
	m.apiRetries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "api_retries_total",
		Help: "Provider requests that were retried after a transient failure.",
	})
	m.apiErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "api_errors_total",
		Help: "Provider requests that failed after retries, by provider.",
	}, []string{"provider"})
	m.reposFetched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "repositories_fetched_total",
		Help: "Repositories whose activity was collected.",
	})
	m.eventsCollected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_collected_total",
		Help: "Raw events collected from the source provider, by kind.",
	}, []string{"kind"})

	m.eventsAggregated = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_aggregated_total",
		Help: "Raw events folded into per-identity bundles, by kind.",
	}, []string{"kind"})
	m.eventsSkipped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_skipped_total",
		Help: "Raw events skipped during aggregation, by reason.",
	}, []string{"reason"})
	m.identitiesTotal = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "identities_total",
		Help: "Distinct identities present in the current run.",
	})
	m.identityMatches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "identity_matches_total",
		Help: "Identity pairings produced by the resolver, by method.",
	}, []string{"method"})
	m.ticketsNormalized = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "tickets_normalized_total",
		Help: "Spreadsheet rows normalized into tickets.",
	})
	m.ticketsDiscarded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "tickets_discarded_total",
		Help: "Spreadsheet rows discarded during normalization.",
	})
	m.recordsMerged = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "records_merged_total",
		Help: "Combined records produced by the merger, by provenance.",
	}, []string{"provenance"})
	m.stageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "stage_duration_seconds",
		Help:    "Wall time spent in each pipeline stage.",
		Buckets: m.histogramBuckets,
	}, []string{"stage"})

	m.analyzerCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "analyzer_calls_total",
		Help: "Qualitative analyzer invocations, by outcome.",
	}, []string{"outcome"})
	m.analyzerFallback = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "analyzer_fallbacks_total",
		Help: "Identities that received the neutral fallback analysis.",
	})
	m.analyzerLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "analyzer_latency_seconds",
		Help:    "Latency of individual analyzer calls.",
		Buckets: m.histogramBuckets,
	})

	m.poolTasks = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "pool_tasks_total",
		Help: "Per-identity tasks executed by the fetch pool, by outcome.",
	}, []string{"outcome"})
	m.poolTaskLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "pool_task_latency_seconds",
		Help:    "Latency of per-identity pool tasks.",
		Buckets: m.histogramBuckets,
	})

	return m
}

// Handler returns an HTTP handler that serves this manager's registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Default returns the global manager.
func Default() *Manager { return globalManager }

// Package-level recording helpers against the global manager.

func RecordAPIRequest(provider string)  { globalManager.apiRequests.WithLabelValues(provider).Inc() }
func RecordAPIRetry()                   { globalManager.apiRetries.Inc() }
func RecordAPIError(provider string)    { globalManager.apiErrors.WithLabelValues(provider).Inc() }
func RecordRepoFetched()                { globalManager.reposFetched.Inc() }
func RecordEventCollected(kind string)  { globalManager.eventsCollected.WithLabelValues(kind).Inc() }
func RecordEventAggregated(kind string) { globalManager.eventsAggregated.WithLabelValues(kind).Inc() }
func RecordEventSkipped(reason string)  { globalManager.eventsSkipped.WithLabelValues(reason).Inc() }
func UpdateIdentitiesTotal(n int)       { globalManager.identitiesTotal.Set(float64(n)) }
func RecordIdentityMatch(method string) { globalManager.identityMatches.WithLabelValues(method).Inc() }
func RecordTicketNormalized()           { globalManager.ticketsNormalized.Inc() }
func RecordTicketDiscarded()            { globalManager.ticketsDiscarded.Inc() }
func RecordRecordMerged(prov string)    { globalManager.recordsMerged.WithLabelValues(prov).Inc() }

func ObserveStageDuration(stage string, seconds float64) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func RecordAnalyzerCall(outcome string) { globalManager.analyzerCalls.WithLabelValues(outcome).Inc() }
func RecordAnalyzerFallback()           { globalManager.analyzerFallback.Inc() }
func ObserveAnalyzerLatency(seconds float64) {
	globalManager.analyzerLatency.Observe(seconds)
}

func RecordPoolTask(outcome string) { globalManager.poolTasks.WithLabelValues(outcome).Inc() }
func ObservePoolTaskLatency(seconds float64) {
	globalManager.poolTaskLatency.Observe(seconds)
}
