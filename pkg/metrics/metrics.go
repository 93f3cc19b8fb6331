// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts ledger transfers by transaction type and outcome.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soul_ledger_transfers_total",
		Help: "Total number of ledger transfer attempts",
	}, []string{"type", "outcome"})

	// SystemTopUpsTotal counts the system-wallet auto top-up safeguard firing.
	SystemTopUpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soul_system_wallet_topups_total",
		Help: "Total number of system wallet safeguard top-ups",
	})

	// SchedulerRunsTotal counts scheduler runs by job name and outcome.
	SchedulerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soul_scheduler_runs_total",
		Help: "Total number of scheduler runs",
	}, []string{"job", "outcome"})

	// SchedulerRunDuration observes scheduler run durations in seconds.
	SchedulerRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "soul_scheduler_run_duration_seconds",
		Help:    "Duration of scheduler runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	// DatabaseConnectionsGauge tracks sql.DB pool statistics by state.
	DatabaseConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "soul_database_connections",
		Help: "Database connection pool statistics",
	}, []string{"state"})
)
