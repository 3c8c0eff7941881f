package backup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "praxis_backup_runs_total",
			Help: "Backup runs by outcome",
		},
		[]string{"outcome"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "praxis_backup_run_duration_seconds",
			Help:    "Duration of a complete backup run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	schedulesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "praxis_backup_schedules_total",
			Help: "Schedules processed by status",
		},
		[]string{"status"},
	)

	stageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "praxis_backup_stage_failures_total",
			Help: "Per-schedule failures by pipeline stage",
		},
		[]string{"stage"},
	)

	verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "praxis_backup_verifications_total",
			Help: "Artifact verifications by result",
		},
		[]string{"result"},
	)

	artifactBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "praxis_backup_artifact_bytes",
			Help:    "Size of uploaded backup artifacts",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	exportedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "praxis_backup_exported_rows_total",
			Help: "Rows written to backup artifacts",
		},
	)

	tablesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "praxis_backup_tables_skipped_total",
			Help: "Tables left out of an export because they could not be read",
		},
	)

	schedulesRepaired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "praxis_backup_schedules_repaired_total",
			Help: "Stale schedules given a fresh next run",
		},
	)

	fallbackRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "praxis_backup_fallback_runs_total",
			Help: "Runs that found no due schedule and synthesized fallbacks",
		},
	)

	backupsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "praxis_backup_pruned_total",
			Help: "Ledger entries removed by retention",
		},
	)

	// 0 = closed, 1 = half-open, 2 = open
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "praxis_backup_circuit_breaker_state",
			Help: "Circuit breaker state",
		},
		[]string{"name"},
	)
)
