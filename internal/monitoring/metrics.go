package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Signal metrics
	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_engine_intents_total",
			Help: "Total number of order and close intents emitted",
		},
		[]string{"symbol", "reason"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_engine_rejections_total",
			Help: "Total number of entry candidates rejected by the filter chain",
		},
		[]string{"reason"},
	)

	undersizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_engine_undersized_total",
			Help: "Entry signals skipped because the rounded quantity was zero",
		},
		[]string{"symbol"},
	)

	// Trade metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_engine_trades_total",
			Help: "Total number of closed trades",
		},
		[]string{"symbol", "reason"},
	)

	tradePnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trend_engine_trade_pnl",
			Help:    "Distribution of realized trade PnL",
			Buckets: []float64{-500, -100, -50, -10, 0, 10, 50, 100, 500},
		},
		[]string{"symbol"},
	)

	// Actor metrics
	actorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_engine_actor_failures_total",
			Help: "Actors stopped by a fatal error or panic",
		},
		[]string{"symbol"},
	)

	actorAllRejected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trend_engine_actor_all_rejected",
			Help: "1 when an actor rejected every bar it evaluated",
		},
		[]string{"symbol"},
	)

	// Market metrics
	regimeState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trend_engine_regime",
			Help: "Benchmark regime (0 not ready, 1 bullish, 2 bearish, 3 volatile)",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_engine_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(intentsTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(undersizedTotal)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradePnL)
	prometheus.MustRegister(actorFailures)
	prometheus.MustRegister(actorAllRejected)
	prometheus.MustRegister(regimeState)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordIntent records an emitted order or close intent
func RecordIntent(symbol, reason string) {
	intentsTotal.WithLabelValues(symbol, reason).Inc()
}

// RecordRejection records a filter chain rejection
func RecordRejection(reason string) {
	rejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordUndersized records an undersized entry signal
func RecordUndersized(symbol string) {
	undersizedTotal.WithLabelValues(symbol).Inc()
}

// RecordTrade records a closed trade
func RecordTrade(symbol, reason string, pnl float64) {
	tradesTotal.WithLabelValues(symbol, reason).Inc()
	tradePnL.WithLabelValues(symbol).Observe(pnl)
}

// RecordActorFailure records an actor stopped by a fatal error or panic
func RecordActorFailure(symbol string) {
	actorFailures.WithLabelValues(symbol).Inc()
}

// SetAllRejected flags an actor whose every evaluated bar was rejected
func SetAllRejected(symbol string, allRejected bool) {
	v := 0.0
	if allRejected {
		v = 1
	}
	actorAllRejected.WithLabelValues(symbol).Set(v)
}

// UpdateRegime publishes the benchmark regime as its numeric code
func UpdateRegime(code int) {
	regimeState.Set(float64(code))
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
