// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"jwt-proxy-go/internal/config"
	"jwt-proxy-go/internal/counters"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Destination label values.
const (
	DestinationSelf     = "self"
	DestinationUpstream = "upstream"
)

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	BreakerRejections prometheus.Counter
	BreakerStates     *prometheus.CounterVec

	Classifications  *prometheus.CounterVec
	AssertionsIssued prometheus.Counter
	AssertionErrors  prometheus.Counter

	pathPrefixes []string
}

// New creates a Metrics instance with a custom registry and all collectors
// registered. The operational counters are exported as read-through collectors.
func New(c *counters.Counters) *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry:     reg,
		pathPrefixes: []string{"/status", "/healthz", "/metrics"},

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwt_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jwt_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jwt_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jwt_proxy_upstream_request_duration_seconds",
			Help:    "Upstream call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwt_proxy_upstream_responses_total",
			Help: "Total upstream responses by method and status code.",
		}, []string{"method", "status_code"}),

		BreakerRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwt_proxy_upstream_breaker_rejections_total",
			Help: "Upstream requests refused by an open circuit breaker.",
		}),

		BreakerStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwt_proxy_upstream_breaker_transitions_total",
			Help: "Circuit breaker state changes.",
		}, []string{"from", "to"}),

		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwt_proxy_classifications_total",
			Help: "Inbound requests by routing destination.",
		}, []string{"destination"}),

		AssertionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwt_proxy_assertions_issued_total",
			Help: "Signed assertion tokens minted for forwarded requests.",
		}),

		AssertionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jwt_proxy_assertion_errors_total",
			Help: "Assertion tokens that could not be signed.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.BreakerRejections,
		m.BreakerStates,
		m.Classifications,
		m.AssertionsIssued,
		m.AssertionErrors,
	)

	if c != nil {
		reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "jwt_proxy_proxied_requests_total",
				Help: "Requests forwarded upstream that produced a response since startup.",
			}, func() float64 { return float64(c.ProxiedRequests()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "jwt_proxy_uptime_seconds",
				Help: "Seconds since the proxy started.",
			}, func() float64 { return time.Since(c.Startup()).Seconds() }),
		)
	}

	return m
}

// NewFromConfig is New with the path labels taken from cfg: a custom metrics
// path gets its own label instead of "other".
func NewFromConfig(cfg *config.Config, c *counters.Counters) *Metrics {
	m := New(c)
	if cfg.Metrics.Enabled && !slices.Contains(m.pathPrefixes, cfg.Metrics.Path) {
		m.pathPrefixes = append(m.pathPrefixes, cfg.Metrics.Path)
	}
	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// NormalizePath returns a bounded path label for Prometheus metrics: one of
// the proxy's own paths, or "other" for anything that may be forwarded.
func (m *Metrics) NormalizePath(path string) string {
	for _, prefix := range m.pathPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return prefix
		}
	}
	return "other"
}
