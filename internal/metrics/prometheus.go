package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rohansen856/database-layering/internal/breaker"
)

// Metrics holds all Prometheus metrics. Everything registers against an
// injected registry so each process (and each test) builds its own set
// instead of sharing package-global state.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Store metrics
	StoreOperations    *prometheus.CounterVec
	StoreOpDuration    *prometheus.HistogramVec
	ReplicationResults *prometheus.CounterVec

	// Admission metrics
	RateLimited prometheus.Counter

	// Breaker metrics
	BreakerTransitions *prometheus.CounterVec
	BreakerOpen        *prometheus.GaugeVec

	// Background pipeline metrics
	QueueDepth      prometheus.Gauge
	QueueProcessed  *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	EventsProjected prometheus.Counter
}

// NewMetrics creates and registers all metrics on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "endpoint", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kv_request_duration_seconds",
				Help:    "Duration of HTTP request processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"tier"},
		),

		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"tier"},
		),

		StoreOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv_store_operations_total",
				Help: "Total number of backing store operations",
			},
			[]string{"partition", "operation", "status"},
		),

		StoreOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kv_store_operation_duration_seconds",
				Help:    "Duration of backing store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"partition", "operation"},
		),

		ReplicationResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv_replication_total",
				Help: "Total number of replication attempts by outcome",
			},
			[]string{"partition", "status"},
		),

		RateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kv_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),

		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"breaker", "to"},
		),

		BreakerOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kv_breaker_open",
				Help: "Whether a circuit breaker is currently open (1) or not (0)",
			},
			[]string{"breaker"},
		),

		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kv_queue_depth",
				Help: "Current depth of the buffered write queue",
			},
		),

		QueueProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv_queue_processed_total",
				Help: "Total number of buffered writes processed by outcome",
			},
			[]string{"status"},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv_events_published_total",
				Help: "Total number of record events appended to the log",
			},
			[]string{"type"},
		),

		EventsProjected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kv_events_projected_total",
				Help: "Total number of events applied to the read model",
			},
		),
	}
}

// RecordRequest records one HTTP request
func (m *Metrics) RecordRequest(method, endpoint, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordCacheHit records a cache hit for a tier
func (m *Metrics) RecordCacheHit(tier string) {
	m.CacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a cache miss for a tier
func (m *Metrics) RecordCacheMiss(tier string) {
	m.CacheMisses.WithLabelValues(tier).Inc()
}

// RecordStoreOperation records one backing store operation
func (m *Metrics) RecordStoreOperation(partition, operation, status string, duration float64) {
	m.StoreOperations.WithLabelValues(partition, operation, status).Inc()
	m.StoreOpDuration.WithLabelValues(partition, operation).Observe(duration)
}

// RecordReplication records a replication attempt outcome
func (m *Metrics) RecordReplication(partition, status string) {
	m.ReplicationResults.WithLabelValues(partition, status).Inc()
}

// RecordRateLimited records a rejected request
func (m *Metrics) RecordRateLimited() {
	m.RateLimited.Inc()
}

// RecordBreakerTransition records a breaker state change and keeps the
// open gauge in step. Wire this as the registry's OnStateChange hook.
func (m *Metrics) RecordBreakerTransition(name string, _, to breaker.State) {
	m.BreakerTransitions.WithLabelValues(name, string(to)).Inc()
	if to == breaker.StateOpen {
		m.BreakerOpen.WithLabelValues(name).Set(1)
	} else {
		m.BreakerOpen.WithLabelValues(name).Set(0)
	}
}

// UpdateQueueDepth updates the buffered write queue depth
func (m *Metrics) UpdateQueueDepth(depth int64) {
	m.QueueDepth.Set(float64(depth))
}

// RecordQueueProcessed records one drained write by outcome
func (m *Metrics) RecordQueueProcessed(status string) {
	m.QueueProcessed.WithLabelValues(status).Inc()
}

// RecordEventPublished records an appended event
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventProjected records an event applied to the read model
func (m *Metrics) RecordEventProjected() {
	m.EventsProjected.Inc()
}
