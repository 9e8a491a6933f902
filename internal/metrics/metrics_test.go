package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.ObserveFulfillment(OutcomeDelivered, 3*time.Millisecond)
	m.ObserveFulfillment(OutcomeDelivered, time.Millisecond)
	m.ObserveFulfillment(OutcomeOutOfStock, time.Millisecond)
	m.CredentialConflict()
	m.TxRetry()
	m.StockCorrected("reconcile")
	m.CredentialStocked()
	m.OrderPlaced()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fulfillments.WithLabelValues(OutcomeDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fulfillments.WithLabelValues(OutcomeOutOfStock)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockCorrections.WithLabelValues("reconcile")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.allocLatency))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `onhand_fulfillment_requests_total{outcome="delivered"} 2`), body)
	assert.Contains(t, body, "onhand_orders_placed_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFulfillment(OutcomeError, time.Second)
		m.CredentialConflict()
		m.TxRetry()
		m.StockCorrected("allocator")
		m.CredentialStocked()
		m.OrderPlaced()
	})
	assert.NotNil(t, m.Handler())
}
