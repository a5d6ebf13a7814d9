package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Webhook and reconciliation
	WebhooksReceived *prometheus.CounterVec
	Reconciliations  *prometheus.CounterVec

	// Downstream notification
	Notifications    *prometheus.CounterVec
	WorkerQueueDepth prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Tests pass prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		WebhooksReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_webhooks_total",
				Help: "Gateway webhook deliveries",
			},
			[]string{"type", "outcome"}, // processed|ignored|duplicate|rejected|failed
		),
		Reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_reconciliations_total",
				Help: "Gateway states folded into transactions",
			},
			[]string{"source", "status"},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_notifications_total",
				Help: "Downstream notifications",
			},
			[]string{"target", "result"}, // sales|kafka, ok|failed|dropped
		),
		WorkerQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "payment_worker_queue_depth",
				Help: "Current notification queue depth",
			},
		),
		gatherer: reg,
	}
}

// Handler serves /metrics for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
