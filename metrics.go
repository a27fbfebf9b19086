package jembatan

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "jembatan"

// MetricsCollector records Prometheus metrics for the request pipeline and
// for the caches, breakers and limiters serving it. A nil collector is valid
// and records nothing. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestsInFlight   *prometheus.GaugeVec
	interceptionsTotal *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	circuitBreakerState *prometheus.GaugeVec
	rateLimiterTokens   *prometheus.GaugeVec

	registry prometheus.Registerer
}

// metricsReporter is implemented by components that publish their own
// gauges once a client with metrics picks them up.
type metricsReporter interface {
	reportTo(mc *MetricsCollector)
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	gauge := func(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &MetricsCollector{
		requestsTotal: counter("", "requests_total", "HTTP requests sent, by response status code",
			"method", "status_code", "endpoint"),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time from sending a request to reading its response body",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status_code", "endpoint"}),
		requestsInFlight: gauge("", "requests_in_flight", "Requests handed to the sender and not yet finished",
			"method", "endpoint"),
		interceptionsTotal: counter("", "interceptions_total", "Requests canceled by an interceptor",
			"method", "behavior"),
		errorsTotal: counter("", "errors_total", "Failed requests, by error type",
			"type", "method", "endpoint"),
		cacheHits: counter("cache", "hits_total", "GET requests answered from the response cache",
			"method", "endpoint"),
		cacheMisses: counter("cache", "misses_total", "Cacheable GET requests sent to the remote",
			"method", "endpoint"),
		cacheSize: gauge("cache", "entries", "Entries held by a response cache, expired ones included until evicted",
			"name"),
		circuitBreakerState: gauge("circuit_breaker", "state", "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			"name"),
		rateLimiterTokens: gauge("rate_limiter", "tokens", "Tokens left in a rate limiter",
			"name"),
		registry: registry,
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	code := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, code, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, code, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc != nil {
		mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
	}
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc != nil {
		mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
	}
}

// RecordInterception counts a request canceled by an interceptor.
func (mc *MetricsCollector) RecordInterception(method string, behavior CancelBehavior) {
	if mc != nil {
		mc.interceptionsTotal.WithLabelValues(method, behavior.String()).Inc()
	}
}

// RecordError counts a failed request.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc != nil {
		mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
	}
}

// RecordCacheHit counts a GET answered from cache.
func (mc *MetricsCollector) RecordCacheHit(method, endpoint string) {
	if mc != nil {
		mc.cacheHits.WithLabelValues(method, endpoint).Inc()
	}
}

// RecordCacheMiss counts a cacheable GET that had to be sent.
func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if mc != nil {
		mc.cacheMisses.WithLabelValues(method, endpoint).Inc()
	}
}

// RecordCacheSize sets the entry count of the named cache.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc != nil {
		mc.cacheSize.WithLabelValues(name).Set(float64(size))
	}
}

// RecordCircuitBreakerState sets the state gauge of the named breaker.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc != nil {
		mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}

// RecordRateLimiterTokens sets the available tokens of the named limiter.
func (mc *MetricsCollector) RecordRateLimiterTokens(name string, tokens int) {
	if mc != nil {
		mc.rateLimiterTokens.WithLabelValues(name).Set(float64(tokens))
	}
}

// GetRegistry exposes the underlying registerer.
func (mc *MetricsCollector) GetRegistry() prometheus.Registerer {
	return mc.registry
}

// bindMetrics hands the collector to every component that reports its own
// gauges. Interceptors added after New are not bound.
func (c *Client) bindMetrics() {
	if c.metrics == nil {
		return
	}
	components := []any{c.cache}
	for _, i := range c.getInterceptors.All() {
		components = append(components, i)
	}
	for _, i := range c.postInterceptors.All() {
		components = append(components, i)
	}
	for _, l := range c.listeners.All() {
		components = append(components, l)
	}
	for _, component := range components {
		if r, ok := component.(metricsReporter); ok {
			r.reportTo(c.metrics)
		}
	}
}
