// Package metrics exposes the prometheus collectors for redemptions, node calls
// and the background loops.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	challenges    *prometheus.CounterVec
	nodeCalls     *prometheus.CounterVec
	nodeLatency   *prometheus.HistogramVec
	invoices      *prometheus.CounterVec
	reconcile     *prometheus.CounterVec
	reconcileTime prometheus.Histogram
	cleanup       *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

var (
	once     sync.Once
	registry *Metrics
)

// Get returns the process-wide collectors, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		registry = &Metrics{
			challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lnurl",
				Subsystem: "challenge",
				Name:      "transitions_total",
				Help:      "Challenge lifecycle events by kind and outcome (minted, claimed, rejected, cancelled).",
			}, []string{"kind", "outcome"}),
			nodeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lnurl",
				Subsystem: "node",
				Name:      "calls_total",
				Help:      "Outbound Lightning and chain node calls by operation and outcome.",
			}, []string{"op", "outcome"}),
			nodeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lnurl",
				Subsystem: "node",
				Name:      "call_duration_seconds",
				Help:      "Latency of outbound node calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lnurl",
				Subsystem: "invoice",
				Name:      "events_total",
				Help:      "Invoices issued and settled, settlement split by the path that observed it.",
			}, []string{"event"}),
			reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lnurl",
				Subsystem: "reconciler",
				Name:      "items_total",
				Help:      "Invoice records processed by the reconciler by result.",
			}, []string{"result"}),
			reconcileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "lnurl",
				Subsystem: "reconciler",
				Name:      "pass_duration_seconds",
				Help:      "Duration of one reconciliation pass.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			}),
			cleanup: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lnurl",
				Subsystem: "cleanup",
				Name:      "deleted_total",
				Help:      "Rows removed by the expiry sweep.",
			}, []string{"table"}),
			httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lnurl",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route, method and status.",
			}, []string{"route", "method", "status"}),
			httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lnurl",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			registry.challenges,
			registry.nodeCalls,
			registry.nodeLatency,
			registry.invoices,
			registry.reconcile,
			registry.reconcileTime,
			registry.cleanup,
			registry.httpRequests,
			registry.httpLatency,
		)
	})
	return registry
}

func (m *Metrics) Challenge(kind, outcome string) {
	m.challenges.WithLabelValues(kind, outcome).Inc()
}

// NodeCall records one outbound call; err == nil counts as success.
func (m *Metrics) NodeCall(op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.nodeCalls.WithLabelValues(op, outcome).Inc()
	m.nodeLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) InvoiceIssued() {
	m.invoices.WithLabelValues("issued").Inc()
}

// InvoiceSettled counts a settlement; source is "reconciler" or "status_query".
func (m *Metrics) InvoiceSettled(source string) {
	m.invoices.WithLabelValues("settled_" + source).Inc()
}

func (m *Metrics) ReconcileItem(result string) {
	m.reconcile.WithLabelValues(result).Inc()
}

func (m *Metrics) ReconcilePass(started time.Time) {
	m.reconcileTime.Observe(time.Since(started).Seconds())
}

func (m *Metrics) Cleaned(table string, n int64) {
	m.cleanup.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) HTTPRequest(route, method string, status int, started time.Time) {
	m.httpRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(time.Since(started).Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
