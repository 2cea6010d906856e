package callms

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the dispatch lifecycle,
// the retry scheduler, and the routing table. It is safe for concurrent use,
// and a nil collector is a no-op so instrumentation never needs guarding.
type MetricsCollector struct {
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	callsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	rateLimiterTokens *prometheus.GaugeVec

	routeHits       *prometheus.CounterVec
	routeMisses     *prometheus.CounterVec
	routeTableSize  prometheus.Gauge
	bootstrapsTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		callsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "callms_calls_total",
				Help: "Total number of logical calls dispatched",
			},
			[]string{"service", "status_code"},
		),
		callDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callms_call_duration_seconds",
				Help:    "Duration of logical calls in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "status_code"},
		),
		callsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "callms_calls_in_flight",
				Help: "Number of logical calls currently in flight",
			},
			[]string{"service"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "callms_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"service", "attempt"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "callms_circuit_breaker_state",
				Help: "Current state of a service's circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"service"},
		),
		rateLimiterTokens: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "callms_rate_limiter_tokens",
				Help: "Rate limiter tokens currently available to a service",
			},
			[]string{"service"},
		),
		routeHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "callms_route_hits_total",
				Help: "Total number of routing table lookups that found an endpoint",
			},
			[]string{"service"},
		),
		routeMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "callms_route_misses_total",
				Help: "Total number of routing table lookups that found no endpoint",
			},
			[]string{"service"},
		),
		routeTableSize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "callms_route_table_size",
				Help: "Number of routes in the routing table",
			},
		),
		bootstrapsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "callms_bootstraps_total",
				Help: "Total number of routing table bootstrap attempts",
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "callms_errors_total",
				Help: "Total number of classified failures",
			},
			[]string{"type", "service"},
		),
	}
	if r, ok := registry.(*prometheus.Registry); ok {
		mc.registry = r
	}

	return mc
}

// RecordCall records one finished logical call with its final status.
func (mc *MetricsCollector) RecordCall(service string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	status := strconv.Itoa(statusCode)
	mc.callsTotal.WithLabelValues(service, status).Inc()
	mc.callDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

// RecordCallStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordCallStart(service string) {
	if mc == nil {
		return
	}

	mc.callsInFlight.WithLabelValues(service).Inc()
}

// RecordCallEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordCallEnd(service string) {
	if mc == nil {
		return
	}

	mc.callsInFlight.WithLabelValues(service).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(service string, attempt int) {
	if mc == nil {
		return
	}

	mc.retriesTotal.WithLabelValues(service, strconv.Itoa(attempt)).Inc()
}

// RecordCircuitBreakerState sets the gauge to the breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(service string, state CircuitState) {
	if mc == nil {
		return
	}

	var stateValue float64
	switch state {
	case StateClosed:
		stateValue = 0
	case StateOpen:
		stateValue = 1
	case StateHalfOpen:
		stateValue = 2
	}

	mc.circuitBreakerState.WithLabelValues(service).Set(stateValue)
}

// RecordRateLimiterTokens sets the available-token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(service string, tokens float64) {
	if mc == nil {
		return
	}

	mc.rateLimiterTokens.WithLabelValues(service).Set(tokens)
}

// RecordRouteHit increments the routing table hit counter.
func (mc *MetricsCollector) RecordRouteHit(service string) {
	if mc == nil {
		return
	}

	mc.routeHits.WithLabelValues(service).Inc()
}

// RecordRouteMiss increments the routing table miss counter.
func (mc *MetricsCollector) RecordRouteMiss(service string) {
	if mc == nil {
		return
	}

	mc.routeMisses.WithLabelValues(service).Inc()
}

// RecordRouteTableSize sets the routing table size gauge.
func (mc *MetricsCollector) RecordRouteTableSize(size int) {
	if mc == nil {
		return
	}

	mc.routeTableSize.Set(float64(size))
}

// RecordBootstrap counts one bootstrap attempt; outcome is "success" or
// "failure".
func (mc *MetricsCollector) RecordBootstrap(outcome string) {
	if mc == nil {
		return
	}

	mc.bootstrapsTotal.WithLabelValues(outcome).Inc()
}

// RecordError increments the error counter by taxonomy type.
func (mc *MetricsCollector) RecordError(errorType, service string) {
	if mc == nil {
		return
	}

	if service == "" {
		service = "unknown"
	}
	mc.errorsTotal.WithLabelValues(errorType, service).Inc()
}

// GetRegistry exposes the underlying prometheus registry when the collector
// was built on one, for wiring into an exposition handler.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}
