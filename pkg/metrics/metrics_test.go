package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLedgerOperation(t *testing.T) {
	m := New(DefaultConfig("stock-service"))

	m.RecordLedgerOperation("ship", true, 7, 10*time.Millisecond)
	m.RecordLedgerOperation("ship", true, 3, 10*time.Millisecond)
	m.RecordLedgerOperation("ship", false, 12, 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.LedgerOperations.WithLabelValues("stock-service", "ship", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LedgerOperations.WithLabelValues("stock-service", "ship", "error")))
	assert.Equal(t, float64(10), testutil.ToFloat64(m.LedgerUnitsMoved.WithLabelValues("stock-service", "ship")))
}

func TestRetryAndConflictCounters(t *testing.T) {
	m := New(DefaultConfig("stock-service"))

	m.RecordRetry("dispose")
	m.RecordRetry("dispose")
	m.RecordConflict("dispose")
	m.RecordInsufficientStock("ship")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TransactionRetries.WithLabelValues("stock-service", "dispose")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConcurrencyErrors.WithLabelValues("stock-service", "dispose")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InsufficientStock.WithLabelValues("stock-service", "ship")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
		m.RecordLedgerOperation("receive", true, 5, time.Millisecond)
		m.RecordRetry("receive")
		m.RecordConflict("receive")
		m.SetExpiredLots(3)
		m.RecordEventPublished("stock.received", true)
		m.SetCircuitBreakerState("rabbitmq", 2)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(DefaultConfig("stock-service"))
	m.RecordHTTPRequest("POST", "/api/v1/shipments", 201, 5*time.Millisecond)
	m.SetExpiredLots(4)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "stockledger_http_requests_total")
	assert.Contains(t, body, "stockledger_ledger_expired_lots")
}
