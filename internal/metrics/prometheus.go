package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "ipscannr"

	subsystemDiscovery = "discovery"
	subsystemPorts     = "ports"
	subsystemDNS       = "dns"
	subsystemCache     = "cache"
	subsystemSession   = "session"
	subsystemAPI       = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors.
type PrometheusMetrics struct {
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	activeScans   prometheus.Gauge

	portsTotal *prometheus.CounterVec

	dnsLookups *prometheus.CounterVec

	cacheOps *prometheus.CounterVec

	transitions *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a metrics instance on its own registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	pm := &PrometheusMetrics{registry: prometheus.NewRegistry()}

	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "probes_total",
			Help:      "Host probes by method and resulting status",
		},
		[]string{"method", "status"},
	)
	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "probe_duration_seconds",
			Help:      "Duration of a single host probe including retries",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"status"},
	)
	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemDiscovery,
			Name:      "active_scans",
			Help:      "Number of host discovery scans currently running",
		},
	)
	pm.portsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPorts,
			Name:      "probed_total",
			Help:      "Ports probed by resulting state",
		},
		[]string{"state"},
	)
	pm.dnsLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDNS,
			Name:      "lookups_total",
			Help:      "Reverse DNS lookups by outcome",
		},
		[]string{"outcome"},
	)
	pm.cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemCache,
			Name:      "operations_total",
			Help:      "Result cache operations by operation and status",
		},
		[]string{"op", "status"},
	)
	pm.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "transitions_total",
			Help:      "Scan session state transitions",
		},
		[]string{"from", "to"},
	)
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)
	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	pm.registry.MustRegister(
		pm.probesTotal,
		pm.probeDuration,
		pm.activeScans,
		pm.portsTotal,
		pm.dnsLookups,
		pm.cacheOps,
		pm.transitions,
		pm.httpRequests,
		pm.httpDuration,
	)

	// Standard Go and process collectors for runtime visibility.
	pm.registry.MustRegister(collectors.NewGoCollector())
	pm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// Registry returns the Prometheus registry for the HTTP handler.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// ObserveProbe records one host probe.
func (pm *PrometheusMetrics) ObserveProbe(method, status string, duration time.Duration) {
	pm.probesTotal.WithLabelValues(method, status).Inc()
	pm.probeDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// AddPorts counts probed ports by state.
func (pm *PrometheusMetrics) AddPorts(state string, count int) {
	pm.portsTotal.WithLabelValues(state).Add(float64(count))
}

// DNSLookup counts a reverse lookup.
func (pm *PrometheusMetrics) DNSLookup(outcome string) {
	pm.dnsLookups.WithLabelValues(outcome).Inc()
}

// CacheOperation counts a cache operation.
func (pm *PrometheusMetrics) CacheOperation(op, status string) {
	pm.cacheOps.WithLabelValues(op, status).Inc()
}

// SetActiveScans sets the number of active scans.
func (pm *PrometheusMetrics) SetActiveScans(count int) {
	pm.activeScans.Set(float64(count))
}

// SessionTransition counts a state change.
func (pm *PrometheusMetrics) SessionTransition(from, to string) {
	pm.transitions.WithLabelValues(from, to).Inc()
}

// ObserveHTTP records one API request.
func (pm *PrometheusMetrics) ObserveHTTP(method, route, status string, duration time.Duration) {
	pm.httpRequests.WithLabelValues(method, route, status).Inc()
	pm.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
