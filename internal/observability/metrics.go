// Package observability provides Prometheus metrics and structured
// logging for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Round metrics
	RoundsTotal      *prometheus.CounterVec
	RoundDuration    prometheus.Histogram
	AuctionOrders    prometheus.Histogram
	CurrentAuctionID prometheus.Gauge

	// Solver metrics
	SolveRequestsTotal  *prometheus.CounterVec
	SolveLatency        *prometheus.HistogramVec
	SubmissionsRejected *prometheus.CounterVec

	// Settlement metrics
	SettlementsTotal    *prometheus.CounterVec
	SettlementAttempts  prometheus.Histogram
	SettlementDuration  prometheus.Histogram
	ConfirmationSlotLag prometheus.Histogram

	// Store metrics
	RecordWriteFailures prometheus.Counter
	RecordWriteRetries  prometheus.Counter

	// Order pool metrics
	OpenOrders    prometheus.Gauge
	PendingOrders prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "auction_engine"
	}

	return &Metrics{
		// Round metrics
		RoundsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "total",
			Help:      "Total number of auction rounds by outcome",
		}, []string{"outcome"}),
		RoundDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "duration_seconds",
			Help:      "Auction round duration from snapshot to record write",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		AuctionOrders: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "auction_orders",
			Help:      "Number of orders per auction snapshot",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		CurrentAuctionID: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rounds",
			Name:      "current_auction_id",
			Help:      "Identifier of the most recent auction",
		}),

		// Solver metrics
		SolveRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solvers",
			Name:      "solve_requests_total",
			Help:      "Total number of solve requests by solver and result",
		}, []string{"solver", "result"}),
		SolveLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solvers",
			Name:      "solve_latency_seconds",
			Help:      "Solve request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"solver"}),
		SubmissionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solvers",
			Name:      "submissions_rejected_total",
			Help:      "Total number of rejected submissions by reason",
		}, []string{"reason"}),

		// Settlement metrics
		SettlementsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "total",
			Help:      "Total number of settlements by terminal status",
		}, []string{"status"}),
		SettlementAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "attempts",
			Help:      "Submissions made per settlement",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		SettlementDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Settlement duration from first submission to terminal status",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		ConfirmationSlotLag: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "confirmation_slot_lag",
			Help:      "Slots between submission and confirmation",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),

		// Store metrics
		RecordWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "record_write_failures_total",
			Help:      "Total number of competition record writes abandoned after retries",
		}),
		RecordWriteRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "record_write_retries_total",
			Help:      "Total number of competition record write retries",
		}),

		// Order pool metrics
		OpenOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orderpool",
			Name:      "open_orders",
			Help:      "Number of open orders in the pool",
		}),
		PendingOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orderpool",
			Name:      "pending_orders",
			Help:      "Number of orders reserved by an in-flight settlement",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
