package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Tick metrics
	TicksTotal   *prometheus.CounterVec
	TickDuration prometheus.Histogram
	TickErrors   *prometheus.CounterVec

	// Signal metrics
	SignalsTotal     *prometheus.CounterVec
	SignalScores     *prometheus.HistogramVec
	SignalConfidence *prometheus.HistogramVec
	SymbolsSkipped   *prometheus.CounterVec

	// Trade metrics
	TradesTotal    *prometheus.CounterVec
	PortfolioValue prometheus.Gauge
	PortfolioCash  prometheus.Gauge
	OpenPositions  prometheus.Gauge

	// External API metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// scoreBuckets are histogram buckets for score metrics (-100 to 100)
var scoreBuckets = []float64{-100, -75, -50, -25, 0, 25, 50, 75, 100}

// confidenceBuckets are histogram buckets for confidence metrics (0 to 1)
var confidenceBuckets = []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		TicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vn_trader",
				Subsystem: "engine",
				Name:      "ticks_total",
				Help:      "Total number of decision ticks by outcome",
			},
			[]string{"status"},
		),
		TickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "vn_trader",
				Subsystem: "engine",
				Name:      "tick_duration_seconds",
				Help:      "Duration of a full decision tick in seconds",
				Buckets:   defaultBuckets,
			},
		),
		TickErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vn_trader",
				Subsystem: "engine",
				Name:      "tick_errors_total",
				Help:      "Total number of tick failures by error type",
			},
			[]string{"error_type"},
		),
		SignalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vn_trader",
				Subsystem: "strategy",
				Name:      "signals_total",
				Help:      "Total number of signals by bucket",
			},
			[]string{"signal"},
		),
		SignalScores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vn_trader",
				Subsystem: "strategy",
				Name:      "score",
				Help:      "Distribution of composite scores",
				Buckets:   scoreBuckets,
			},
			[]string{"signal"},
		),
		SignalConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vn_trader",
				Subsystem: "strategy",
				Name:      "confidence",
				Help:      "Distribution of signal confidence levels",
				Buckets:   confidenceBuckets,
			},
			[]string{"signal"},
		),
		SymbolsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vn_trader",
				Subsystem: "strategy",
				Name:      "symbols_skipped_total",
				Help:      "Watchlist symbols skipped during entry scans",
			},
			[]string{"reason"},
		),
		TradesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vn_trader",
				Subsystem: "portfolio",
				Name:      "trades_total",
				Help:      "Total number of executed trades",
			},
			[]string{"action", "reason"},
		),
		PortfolioValue: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vn_trader",
				Subsystem: "portfolio",
				Name:      "total_value_vnd",
				Help:      "Portfolio total value after the last tick",
			},
		),
		PortfolioCash: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vn_trader",
				Subsystem: "portfolio",
				Name:      "cash_vnd",
				Help:      "Portfolio cash after the last tick",
			},
		),
		OpenPositions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "vn_trader",
				Subsystem: "portfolio",
				Name:      "open_positions",
				Help:      "Number of open positions after the last tick",
			},
		),
		ExternalAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vn_trader",
				Subsystem: "external_api",
				Name:      "requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"service", "operation"},
		),
		ExternalAPIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vn_trader",
				Subsystem: "external_api",
				Name:      "errors_total",
				Help:      "Total number of external API errors",
			},
			[]string{"service", "operation", "error_type"},
		),
		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vn_trader",
				Subsystem: "external_api",
				Name:      "duration_seconds",
				Help:      "Duration of external API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service", "operation"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vn_trader",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vn_trader",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "vn_trader",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vn_trader",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// RecordTick records a completed tick with its outcome and duration
func (m *Metrics) RecordTick(status string, duration time.Duration) {
	m.TicksTotal.WithLabelValues(status).Inc()
	m.TickDuration.Observe(duration.Seconds())
}

// RecordTickError records a tick failure by error type
func (m *Metrics) RecordTickError(errorType string) {
	m.TickErrors.WithLabelValues(errorType).Inc()
}

// RecordSignal records a generated signal
func (m *Metrics) RecordSignal(signal string, score int, confidence float64) {
	m.SignalsTotal.WithLabelValues(signal).Inc()
	m.SignalScores.WithLabelValues(signal).Observe(float64(score))
	m.SignalConfidence.WithLabelValues(signal).Observe(confidence)
}

// RecordSkippedSymbol records a watchlist symbol skipped during a scan
func (m *Metrics) RecordSkippedSymbol(reason string) {
	m.SymbolsSkipped.WithLabelValues(reason).Inc()
}

// RecordTrade records an executed trade
func (m *Metrics) RecordTrade(action, reason string) {
	m.TradesTotal.WithLabelValues(action, reason).Inc()
}

// SetPortfolioGauges refreshes the portfolio gauges after a tick
func (m *Metrics) SetPortfolioGauges(totalValue, cash int64, openPositions int) {
	m.PortfolioValue.Set(float64(totalValue))
	m.PortfolioCash.Set(float64(cash))
	m.OpenPositions.Set(float64(openPositions))
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

// RecordExternalAPIError records an external API error
func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

// RecordExternalAPIDuration records the duration of an external API call
func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveTick records the tick duration and outcome
func (t *Timer) ObserveTick(status string) {
	t.metrics.RecordTick(status, time.Since(t.start))
}

// ObserveExternalAPI records the external API duration
func (t *Timer) ObserveExternalAPI(service, operation string) {
	t.metrics.RecordExternalAPIDuration(service, operation, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
