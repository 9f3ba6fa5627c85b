package securenotify

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// reliability layers. All Record methods are nil-receiver safe so callers
// never need a guard. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	rateLimiterTokens *prometheus.GaugeVec

	dedupHits      *prometheus.CounterVec
	dedupMisses    *prometheus.CounterVec
	dedupCacheSize *prometheus.GaugeVec

	sseState      *prometheus.GaugeVec
	sseEvents     *prometheus.CounterVec
	sseReconnects *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "securenotify_requests_total",
				Help: "Total number of API requests made",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "securenotify_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "securenotify_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "securenotify_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		rateLimiterTokens: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "securenotify_rate_limiter_tokens",
				Help: "Current number of available rate limiter tokens",
			},
			[]string{"name"},
		),
		dedupHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "securenotify_dedup_hits_total",
				Help: "Total number of deduplication hits (cached or coalesced)",
			},
			[]string{"endpoint"},
		),
		dedupMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "securenotify_dedup_misses_total",
				Help: "Total number of deduplication misses",
			},
			[]string{"endpoint"},
		),
		dedupCacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "securenotify_dedup_cache_size",
				Help: "Current number of entries in the completed-result cache",
			},
			[]string{"name"},
		),
		sseState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "securenotify_sse_connection_state",
				Help: "SSE connection state per channel (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
			},
			[]string{"channel"},
		),
		sseEvents: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "securenotify_sse_events_total",
				Help: "Total number of SSE frames dispatched",
			},
			[]string{"channel", "event_type"},
		),
		sseReconnects: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "securenotify_sse_reconnects_total",
				Help: "Total number of SSE reconnect attempts",
			},
			[]string{"channel"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "securenotify_errors_total",
				Help: "Total number of errors by code",
			},
			[]string{"code", "endpoint"},
		),
	}
}

// RecordRequestStart marks a request as in flight.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd marks a request as no longer in flight.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRequest records a completed request with its outcome.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	mc.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordRateLimiterTokens records the current token count.
func (mc *MetricsCollector) RecordRateLimiterTokens(name string, tokens float64) {
	if mc == nil {
		return
	}
	mc.rateLimiterTokens.WithLabelValues(name).Set(tokens)
}

// RecordDedupHit records a deduplication hit.
func (mc *MetricsCollector) RecordDedupHit(endpoint string) {
	if mc == nil {
		return
	}
	mc.dedupHits.WithLabelValues(endpoint).Inc()
}

// RecordDedupMiss records a deduplication miss.
func (mc *MetricsCollector) RecordDedupMiss(endpoint string) {
	if mc == nil {
		return
	}
	mc.dedupMisses.WithLabelValues(endpoint).Inc()
}

// RecordDedupCacheSize records the completed-result cache size.
func (mc *MetricsCollector) RecordDedupCacheSize(name string, size int) {
	if mc == nil {
		return
	}
	mc.dedupCacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordSSEState records the connection state for a channel.
func (mc *MetricsCollector) RecordSSEState(channel string, state ConnectionState) {
	if mc == nil {
		return
	}
	mc.sseState.WithLabelValues(channel).Set(float64(state))
}

// RecordSSEEvent records one dispatched frame.
func (mc *MetricsCollector) RecordSSEEvent(channel, eventType string) {
	if mc == nil {
		return
	}
	mc.sseEvents.WithLabelValues(channel, eventType).Inc()
}

// RecordSSEReconnect records one reconnect attempt.
func (mc *MetricsCollector) RecordSSEReconnect(channel string) {
	if mc == nil {
		return
	}
	mc.sseReconnects.WithLabelValues(channel).Inc()
}

// RecordError records an error by code.
func (mc *MetricsCollector) RecordError(code ErrorCode, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(string(code), endpoint).Inc()
}
