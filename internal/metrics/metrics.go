// Package metrics holds the Prometheus instruments for fulfillment and stock.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onhand"

// Fulfillment outcomes, used as the "outcome" label.
const (
	OutcomeDelivered        = "delivered"
	OutcomeAlreadyDelivered = "already_delivered"
	OutcomeOutOfStock       = "out_of_stock"
	OutcomeNotFound         = "not_found"
	OutcomeInvalidStatus    = "invalid_status"
	OutcomeError            = "error"
)

// Metrics groups the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fulfillments     *prometheus.CounterVec
	allocLatency     prometheus.Histogram
	conflicts        prometheus.Counter
	txRetries        prometheus.Counter
	stockCorrections *prometheus.CounterVec
	stocked          prometheus.Counter
	ordersPlaced     prometheus.Counter
}

// New creates the instruments on a dedicated registry that also exposes Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		fulfillments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fulfillment", Name: "requests_total",
			Help: "Fulfillment attempts by outcome.",
		}, []string{"outcome"}),
		allocLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "fulfillment", Name: "duration_seconds",
			Help:    "Wall time of fulfill_order including retries.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fulfillment", Name: "credential_conflicts_total",
			Help: "Credential reservations lost to a concurrent allocation.",
		}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fulfillment", Name: "tx_retries_total",
			Help: "Fulfillment transactions re-run after a retryable database error.",
		}),
		stockCorrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stock", Name: "corrections_total",
			Help: "Stock counters overwritten by a recount.",
		}, []string{"source"}),
		stocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stock", Name: "credentials_stocked_total",
			Help: "Credentials added to inventory.",
		}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "placed_total",
			Help: "Orders placed.",
		}),
	}
	reg.MustRegister(m.fulfillments, m.allocLatency, m.conflicts, m.txRetries,
		m.stockCorrections, m.stocked, m.ordersPlaced)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) ObserveFulfillment(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.fulfillments.WithLabelValues(outcome).Inc()
	m.allocLatency.Observe(took.Seconds())
}

func (m *Metrics) CredentialConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) TxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// StockCorrected counts a counter overwrite; source is "reconcile" or "allocator".
func (m *Metrics) StockCorrected(source string) {
	if m == nil {
		return
	}
	m.stockCorrections.WithLabelValues(source).Inc()
}

func (m *Metrics) CredentialStocked() {
	if m == nil {
		return
	}
	m.stocked.Inc()
}

func (m *Metrics) OrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}
