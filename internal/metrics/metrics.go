// Package metrics exposes Prometheus collectors for the API process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	walletCredits  *prometheus.CounterVec
	walletDebits   *prometheus.CounterVec
	paymentIntents *prometheus.CounterVec
	loyaltyPoints  *prometheus.CounterVec
	giftEvents     *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"service", "method", "path"}),

		walletCredits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "credits_total",
			Help:      "Wallet credits applied, by transaction type.",
		}, []string{"type"}),
		walletDebits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "debits_total",
			Help:      "Wallet debits applied, by transaction type.",
		}, []string{"type"}),
		paymentIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "intents_total",
			Help:      "Payment intents created, by purpose.",
		}, []string{"purpose"}),
		loyaltyPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loyalty",
			Name:      "points_total",
			Help:      "Absolute loyalty points moved, by transaction type.",
		}, []string{"type"}),
		giftEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gifts",
			Name:      "events_total",
			Help:      "Gift lifecycle events.",
		}, []string{"event"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.walletCredits,
		m.walletDebits,
		m.paymentIntents,
		m.loyaltyPoints,
		m.giftEvents,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// =============================================================================
// HTTP
// =============================================================================

func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }

func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one handled request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// =============================================================================
// Domain
// =============================================================================

// RecordWalletCredit counts a wallet credit of the given transaction type.
func (m *Metrics) RecordWalletCredit(txType string) {
	if m == nil {
		return
	}
	m.walletCredits.WithLabelValues(txType).Inc()
}

// RecordWalletDebit counts a wallet debit of the given transaction type.
func (m *Metrics) RecordWalletDebit(txType string) {
	if m == nil {
		return
	}
	m.walletDebits.WithLabelValues(txType).Inc()
}

// RecordPaymentIntent counts a created payment intent.
func (m *Metrics) RecordPaymentIntent(purpose string) {
	if m == nil {
		return
	}
	m.paymentIntents.WithLabelValues(purpose).Inc()
}

// RecordLoyaltyPoints adds the absolute value of delta to the points counter.
func (m *Metrics) RecordLoyaltyPoints(txType string, delta int) {
	if m == nil {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	m.loyaltyPoints.WithLabelValues(txType).Add(float64(delta))
}

// RecordGiftEvent counts a gift send or redeem.
func (m *Metrics) RecordGiftEvent(event string) {
	if m == nil {
		return
	}
	m.giftEvents.WithLabelValues(event).Inc()
}
