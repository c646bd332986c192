// Package metrics collects and exposes Prometheus metrics for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records the service metrics. It satisfies the
// session package's Metrics interface.
type Collector struct {
	registry *prometheus.Registry

	authEvents      *prometheus.CounterVec
	hydrations      *prometheus.CounterVec
	authActions     *prometheus.CounterVec
	flagSubmissions *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	httpLatency     prometheus.Histogram
}

// NewCollector creates a Collector backed by its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_auth_events_total",
			Help: "Auth state-change events received from the identity provider.",
		}, []string{"event"}),
		hydrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_profile_hydrations_total",
			Help: "Profile hydration attempts by outcome.",
		}, []string{"outcome"}),
		authActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_auth_actions_total",
			Help: "Auth action invocations by action and outcome.",
		}, []string{"action", "outcome"}),
		flagSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_flag_submissions_total",
			Help: "CTF flag submissions by outcome.",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberwhale_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyberwhale_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		c.authEvents,
		c.hydrations,
		c.authActions,
		c.flagSubmissions,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordAuthEvent counts a provider auth event.
func (c *Collector) RecordAuthEvent(event string) {
	c.authEvents.WithLabelValues(event).Inc()
}

// RecordHydration counts a profile hydration outcome.
func (c *Collector) RecordHydration(outcome string) {
	c.hydrations.WithLabelValues(outcome).Inc()
}

// RecordAction counts an auth action outcome.
func (c *Collector) RecordAction(action, outcome string) {
	c.authActions.WithLabelValues(action, outcome).Inc()
}

// RecordFlagSubmission counts a CTF flag submission outcome.
func (c *Collector) RecordFlagSubmission(outcome string) {
	c.flagSubmissions.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus counts an HTTP response status.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPLatency observes a request duration.
func (c *Collector) RecordHTTPLatency(duration time.Duration) {
	c.httpLatency.Observe(duration.Seconds())
}

// Handler exposes the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
