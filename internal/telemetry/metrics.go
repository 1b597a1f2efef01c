// Package telemetry exposes business-level Prometheus metrics for the
// pricing engine: solve volume, outcomes, iteration counts, and the
// distribution of solved margins.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PricingMetrics holds Prometheus metrics for pricing observability.
// All metrics include tenant_id label for multi-tenant dashboard segmentation.
type PricingMetrics struct {
	// Solve volume and outcomes
	SolvesTotal     *prometheus.CounterVec
	SolveFailures   *prometheus.CounterVec
	SolveUnsolvable *prometheus.CounterVec

	// Solver behavior
	SolverIterations *prometheus.HistogramVec

	// Commercial outcomes
	SolvedMarginPercent *prometheus.HistogramVec

	// Margin simulations (forward evaluation of an existing price)
	SimulationsTotal *prometheus.CounterVec
}

// NewPricingMetrics creates and registers all pricing metrics
func NewPricingMetrics(namespace string) *PricingMetrics {
	if namespace == "" {
		namespace = "backoffice"
	}

	subsystem := "pricing"

	return &PricingMetrics{
		SolvesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solves_total",
				Help:      "Total price solve requests",
			},
			[]string{"tenant_id", "channel_id"},
		),
		SolveFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_failures_total",
				Help:      "Total price solves rejected as invalid or failed internally",
			},
			[]string{"tenant_id", "reason"}, // reason: validation, diverged, internal
		),
		SolveUnsolvable: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_unsolvable_total",
				Help:      "Total solves where fees plus margin met or exceeded 100% of price",
			},
			[]string{"tenant_id", "channel_id"},
		),
		SolverIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solver_iterations",
				Help:      "Fixed-point iterations taken per successful solve",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8},
			},
			[]string{"tenant_id"},
		),
		SolvedMarginPercent: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solved_margin_percent",
				Help:      "Realized margin percent of successful solves",
				Buckets:   []float64{-10, 0, 5, 10, 15, 20, 25, 30, 40, 50},
			},
			[]string{"tenant_id", "channel_id"},
		),
		SimulationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "simulations_total",
				Help:      "Total margin simulations against a caller-provided price",
			},
			[]string{"tenant_id", "channel_id"},
		),
	}
}
