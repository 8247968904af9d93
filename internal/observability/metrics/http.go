package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics covers dashboard and API traffic. Paths are echo route
// patterns such as /charts/trend/:series, never raw URLs.
type HTTPMetrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	responseSize *prometheus.HistogramVec
	render       *prometheus.HistogramVec
	renderErrors *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
}

// NewHTTPMetrics registers the HTTP collectors on registry.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
	}

	m := &HTTPMetrics{
		requests: counter("http_requests_total",
			"HTTP requests by route and status code.", "method", "path", "status_code"),
		latency: histogram("http_request_duration_seconds",
			"HTTP request latency.", prometheus.DefBuckets, "method", "path"),
		failures: counter("http_request_errors_total",
			"HTTP requests whose handler returned an error, by error category.", "method", "path", "error_type"),
		responseSize: histogram("http_response_size_bytes",
			"HTTP response body size.", prometheus.ExponentialBuckets(100, 10, 6), "method", "path"),
		render: histogram("http_template_render_duration_seconds",
			"Page template render time.", prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10), "template"),
		renderErrors: counter("http_template_render_errors_total",
			"Page templates that failed to render.", "template"),
		rateLimited: counter("http_rate_limited_total",
			"API requests rejected by the rate limiter.", "path"),
	}

	for _, c := range []prometheus.Collector{
		m.requests, m.latency, m.failures, m.responseSize, m.render, m.renderErrors, m.rateLimited,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveRequest records one finished request.
func (m *HTTPMetrics) ObserveRequest(method, path string, status int, elapsed time.Duration, bytes int64) {
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, path).Observe(elapsed.Seconds())
	m.responseSize.WithLabelValues(method, path).Observe(float64(bytes))
}

// CountError records a request that ended in a handler error of kind.
func (m *HTTPMetrics) CountError(method, path, kind string) {
	m.failures.WithLabelValues(method, path, kind).Inc()
}

// ObserveRender records one template render.
func (m *HTTPMetrics) ObserveRender(template string, elapsed time.Duration, err error) {
	m.render.WithLabelValues(template).Observe(elapsed.Seconds())
	if err != nil {
		m.renderErrors.WithLabelValues(template).Inc()
	}
}

func (m *HTTPMetrics) CountRateLimited(path string) {
	m.rateLimited.WithLabelValues(path).Inc()
}
