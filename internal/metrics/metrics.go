package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// OperationDuration tracks the latency of ledger operations
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "crowdfund_operation_duration_seconds",
			Help: "Duration of ledger operations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"operation", "status"},
	)

	// ThresholdReached counts campaigns whose donations crossed their target
	ThresholdReached = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdfund_threshold_reached_total",
			Help: "Number of donations that pushed a campaign over its target",
		},
	)

	// DonatedAmount accumulates base units moved into escrow per mint
	DonatedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_donated_amount_total",
			Help: "Base units donated into campaign escrow accounts",
		},
		[]string{"mint"},
	)

	// WithdrawnAmount accumulates base units released to creators per mint
	WithdrawnAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_withdrawn_amount_total",
			Help: "Base units released from escrow to campaign creators",
		},
		[]string{"mint"},
	)
)

// RecordOperationDuration records the duration of one ledger operation
func RecordOperationDuration(operation, status string, duration float64) {
	OperationDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordDonation records a committed donation
func RecordDonation(mint string, amount uint64, crossed bool) {
	DonatedAmount.WithLabelValues(mint).Add(float64(amount))
	if crossed {
		ThresholdReached.Inc()
	}
}

// RecordWithdrawal records a committed withdrawal
func RecordWithdrawal(mint string, amount uint64) {
	WithdrawnAmount.WithLabelValues(mint).Add(float64(amount))
}
