// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Watcher metrics
	PoolsDetected   *prometheus.CounterVec
	WatcherBackoffs prometheus.Counter

	// Safety metrics
	SafetyChecks *prometheus.CounterVec
	SafetyScores prometheus.Histogram

	// Entry metrics
	EntriesAttempted prometheus.Counter
	EntriesFilled    prometheus.Counter
	EntryFailures    *prometheus.CounterVec
	EntryLatency     prometheus.Histogram

	// Position metrics
	OpenPositions prometheus.Gauge
	TierFills     *prometheus.CounterVec
	Exits         *prometheus.CounterVec
	SellFailures  prometheus.Counter

	// Transport metrics
	RPCCallLatency *prometheus.HistogramVec
	QuoteLatency   prometheus.Histogram
	UpdatesDropped prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pool_sniper"
	}

	return &Metrics{
		PoolsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "pools_detected_total",
			Help:      "Total number of pool creations detected by source",
		}, []string{"source"}),
		WatcherBackoffs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "backoffs_total",
			Help:      "Total number of rate-limit backoffs in the poll loop",
		}),

		SafetyChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "safety",
			Name:      "checks_total",
			Help:      "Total number of safety evaluations by outcome",
		}, []string{"outcome"}),
		SafetyScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "safety",
			Name:      "score",
			Help:      "Distribution of composite safety scores",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		EntriesAttempted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entry",
			Name:      "attempted_total",
			Help:      "Total number of snipe entries attempted",
		}),
		EntriesFilled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entry",
			Name:      "filled_total",
			Help:      "Total number of snipe entries confirmed",
		}),
		EntryFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entry",
			Name:      "failures_total",
			Help:      "Total number of entry failures by kind",
		}, []string{"kind"}),
		EntryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "entry",
			Name:      "latency_seconds",
			Help:      "Quote-to-confirmation latency of entries in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),

		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "open",
			Help:      "Number of currently monitored positions",
		}),
		TierFills: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "tier_fills_total",
			Help:      "Total number of tier sells confirmed by tier",
		}, []string{"tier"}),
		Exits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "exits_total",
			Help:      "Total number of closed positions by exit reason",
		}, []string{"reason"}),
		SellFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "sell_failures_total",
			Help:      "Total number of failed sell attempts",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		QuoteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jupiter",
			Name:      "quote_latency_seconds",
			Help:      "Jupiter quote latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		UpdatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "updates",
			Name:      "dropped_total",
			Help:      "Total number of position updates dropped on full buffers",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPoolDetected increments the pools detected counter for a source.
func RecordPoolDetected(source string) {
	DefaultMetrics.PoolsDetected.WithLabelValues(source).Inc()
}

// RecordWatcherBackoff increments the rate-limit backoff counter.
func RecordWatcherBackoff() {
	DefaultMetrics.WatcherBackoffs.Inc()
}

// RecordSafetyOutcome records a safety evaluation outcome ("passed",
// "rejected", "failed_score") and its score.
func RecordSafetyOutcome(outcome string, score int) {
	DefaultMetrics.SafetyChecks.WithLabelValues(outcome).Inc()
	DefaultMetrics.SafetyScores.Observe(float64(score))
}

// RecordEntryAttempt increments the entries attempted counter.
func RecordEntryAttempt() {
	DefaultMetrics.EntriesAttempted.Inc()
}

// RecordEntryFilled records a confirmed entry and its latency.
func RecordEntryFilled(seconds float64) {
	DefaultMetrics.EntriesFilled.Inc()
	DefaultMetrics.EntryLatency.Observe(seconds)
}

// RecordEntryFailure increments the entry failure counter for a kind.
func RecordEntryFailure(kind string) {
	DefaultMetrics.EntryFailures.WithLabelValues(kind).Inc()
}

// SetOpenPositions updates the open-position gauge.
func SetOpenPositions(n int) {
	DefaultMetrics.OpenPositions.Set(float64(n))
}

// RecordTierFill increments the tier fill counter ("tier1", "tier2", "tier3").
func RecordTierFill(tier string) {
	DefaultMetrics.TierFills.WithLabelValues(tier).Inc()
}

// RecordExit increments the exit counter for a reason.
func RecordExit(reason string) {
	DefaultMetrics.Exits.WithLabelValues(reason).Inc()
}

// RecordSellFailure increments the failed-sell counter.
func RecordSellFailure() {
	DefaultMetrics.SellFailures.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordQuoteLatency records Jupiter quote latency.
func RecordQuoteLatency(seconds float64) {
	DefaultMetrics.QuoteLatency.Observe(seconds)
}

// RecordUpdateDropped increments the dropped-update counter.
func RecordUpdateDropped() {
	DefaultMetrics.UpdatesDropped.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
