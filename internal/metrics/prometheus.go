package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all admission-control metrics.
type Registry struct {
	// Session metrics
	SessionsActive   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsRejected *prometheus.CounterVec
	SessionsEnded    *prometheus.CounterVec

	// Firewall metrics
	FirewallOperations *prometheus.CounterVec
	ConntrackFlushed   prometheus.Counter

	// Integrity monitor
	SweepDuration prometheus.Histogram

	// Identity lookups
	IdentityLookups *prometheus.CounterVec

	// Portal
	LoginAttempts *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPLatency   *prometheus.HistogramVec

	// Captive DNS
	DNSQueries *prometheus.CounterVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netguard_sessions_active",
		Help: "Number of live sessions",
	})

	r.SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netguard_sessions_created_total",
		Help: "Total sessions created",
	})

	r.SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netguard_sessions_rejected_total",
		Help: "Session requests refused before a session was created",
	}, []string{"reason"})

	r.SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netguard_sessions_ended_total",
		Help: "Sessions ended, by reason",
	}, []string{"reason"})

	r.FirewallOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netguard_firewall_operations_total",
		Help: "Firewall authorize and revoke operations",
	}, []string{"op", "result"})

	r.ConntrackFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netguard_conntrack_flushed_total",
		Help: "Connection tracking entries removed on revoke",
	})

	r.SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netguard_sweep_duration_seconds",
		Help:    "Duration of integrity monitor sweeps",
		Buckets: prometheus.DefBuckets,
	})

	r.IdentityLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netguard_identity_lookups_total",
		Help: "MAC lookups by source and result",
	}, []string{"source", "result"})

	r.LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netguard_login_attempts_total",
		Help: "Portal login attempts by result",
	}, []string{"result"})

	r.HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netguard_http_requests_total",
		Help: "Portal HTTP requests",
	}, []string{"method", "path", "status"})

	r.HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netguard_http_request_duration_seconds",
		Help:    "Portal HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	r.DNSQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netguard_dns_queries_total",
		Help: "Captive DNS queries by type",
	}, []string{"type"})

	return r
}

// RecordFirewallOp records the outcome of an authorize or revoke.
func (r *Registry) RecordFirewallOp(op string, ok bool) {
	r.FirewallOperations.WithLabelValues(op, resultString(ok)).Inc()
}

// RecordSweep records how long an integrity sweep took.
func (r *Registry) RecordSweep(d time.Duration) {
	r.SweepDuration.Observe(d.Seconds())
}

// RecordLookup records a MAC lookup.
func (r *Registry) RecordLookup(source string, found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	r.IdentityLookups.WithLabelValues(source, result).Inc()
}

// RecordAPIRequest records a portal HTTP request.
func (r *Registry) RecordAPIRequest(method, path string, status int, duration float64) {
	r.HTTPRequests.WithLabelValues(method, path, statusString(status)).Inc()
	r.HTTPLatency.WithLabelValues(method, path).Observe(duration)
}

func resultString(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// statusString converts an HTTP status code to string.
func statusString(status int) string {
	return fmt.Sprintf("%d", status)
}
