// Package metrics holds the Prometheus collectors exported on /metrics.
// Every method is safe on a nil *Metrics so callers can run without a
// registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

const namespace = "gatepass"

type Metrics struct {
	decisions     *prometheus.CounterVec
	issued        prometheus.Counter
	deactivated   prometheus.Counter
	auditFailures prometheus.Counter
	storageFaults *prometheus.CounterVec
	eventsDropped prometheus.Counter
	eventFailures *prometheus.CounterVec
	tokens        *prometheus.GaugeVec
	httpDuration  *prometheus.HistogramVec
}

// New builds the collectors and registers them with reg.  A nil reg gives a
// Metrics that records into unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verify_decisions_total",
			Help:      "Verification decisions by result.",
		}, []string{"result"}),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued.",
		}),
		deactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_deactivated_total",
			Help:      "Tokens explicitly deactivated.",
		}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_append_failures_total",
			Help:      "Scan log appends that failed after a decision was made.",
		}),
		storageFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_faults_total",
			Help:      "Token store failures surfaced to callers.",
		}, []string{"op"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because the dispatcher queue was full or closed.",
		}),
		eventFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_sink_failures_total",
			Help:      "Event sink deliveries that returned an error.",
		}, []string{"sink"}),
		tokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tokens",
			Help:      "Stored tokens by status.",
		}, []string{"status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.decisions,
			m.issued,
			m.deactivated,
			m.auditFailures,
			m.storageFaults,
			m.eventsDropped,
			m.eventFailures,
			m.tokens,
			m.httpDuration,
		)
	}
	return m
}

func (m *Metrics) ObserveDecision(d types.Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(d.Result())).Inc()
}

func (m *Metrics) TokenIssued() {
	if m == nil {
		return
	}
	m.issued.Inc()
}

func (m *Metrics) TokenDeactivated() {
	if m == nil {
		return
	}
	m.deactivated.Inc()
}

func (m *Metrics) AuditFailed() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

func (m *Metrics) StorageFault(op string) {
	if m == nil {
		return
	}
	m.storageFaults.WithLabelValues(op).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) EventSinkFailed(sink string) {
	if m == nil {
		return
	}
	m.eventFailures.WithLabelValues(sink).Inc()
}

// SetTokenCounts replaces the token gauge values.
func (m *Metrics) SetTokenCounts(counts map[types.TokenStatus]int64) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.tokens.WithLabelValues(string(status)).Set(float64(n))
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
