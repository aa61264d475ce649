package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the stock service's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Ledger metrics
	LedgerOperations   *prometheus.CounterVec
	LedgerUnitsMoved   *prometheus.CounterVec
	LedgerDuration     *prometheus.HistogramVec
	InsufficientStock  *prometheus.CounterVec
	TransactionRetries *prometheus.CounterVec
	ConcurrencyErrors  *prometheus.CounterVec
	ExpiredLots        prometheus.Gauge

	// Messaging metrics
	EventsPublished *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "stockledger",
	}
}

// New creates a new Metrics instance on its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_operations_total",
			Help:      "Total number of ledger operations by outcome",
		},
		[]string{"service", "operation", "status"},
	)

	m.LedgerUnitsMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_units_total",
			Help:      "Total stock units received, disposed or shipped",
		},
		[]string{"service", "operation"},
	)

	m.LedgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation duration in seconds, retries included",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"service", "operation"},
	)

	m.InsufficientStock = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_insufficient_stock_total",
			Help:      "Debits rejected because the product did not have enough stock",
		},
		[]string{"service", "operation"},
	)

	m.TransactionRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_tx_retries_total",
			Help:      "Transactions re-run after a deadlock, serialization failure or lock timeout",
		},
		[]string{"service", "operation"},
	)

	m.ConcurrencyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_conflicts_total",
			Help:      "Operations that gave up with a concurrency conflict",
		},
		[]string{"service", "operation"},
	)

	m.ExpiredLots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "ledger_expired_lots",
			Help:        "Lots past their expiry date that still hold stock, as of the last scan",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "events_published_total",
			Help:      "Total number of events published to the broker",
		},
		[]string{"service", "event_type", "status"},
	)

	m.EventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "events_consumed_total",
			Help:      "Total number of events consumed from the broker",
		},
		[]string{"service", "event_type", "status"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.LedgerOperations,
		m.LedgerUnitsMoved,
		m.LedgerDuration,
		m.InsufficientStock,
		m.TransactionRetries,
		m.ConcurrencyErrors,
		m.ExpiredLots,
		m.EventsPublished,
		m.EventsConsumed,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordLedgerOperation records the outcome of a receive, dispose or ship call
func (m *Metrics) RecordLedgerOperation(operation string, success bool, units int, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.LedgerOperations.WithLabelValues(m.serviceName, operation, status).Inc()
	m.LedgerDuration.WithLabelValues(m.serviceName, operation).Observe(duration.Seconds())
	if success && units > 0 {
		m.LedgerUnitsMoved.WithLabelValues(m.serviceName, operation).Add(float64(units))
	}
}

// RecordInsufficientStock records a rejected debit
func (m *Metrics) RecordInsufficientStock(operation string) {
	if m == nil {
		return
	}
	m.InsufficientStock.WithLabelValues(m.serviceName, operation).Inc()
}

// RecordRetry records a transaction retry
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.TransactionRetries.WithLabelValues(m.serviceName, operation).Inc()
}

// RecordConflict records an operation abandoned after its retries ran out
func (m *Metrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.ConcurrencyErrors.WithLabelValues(m.serviceName, operation).Inc()
}

// SetExpiredLots sets the number of expired lots found by the last scan
func (m *Metrics) SetExpiredLots(count int) {
	if m == nil {
		return
	}
	m.ExpiredLots.Set(float64(count))
}

// RecordEventPublished records a broker publish
func (m *Metrics) RecordEventPublished(eventType string, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(m.serviceName, eventType, status).Inc()
}

// RecordEventConsumed records a consumed broker message
func (m *Metrics) RecordEventConsumed(eventType string, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.EventsConsumed.WithLabelValues(m.serviceName, eventType, status).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
