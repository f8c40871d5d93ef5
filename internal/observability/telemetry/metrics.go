package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==================== Run Metrics ====================

	// RunsTotal tracks completed runs by mode and status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alloccore_runs_total",
		Help: "Total optimization runs by mode and status",
	}, []string{"mode", "status"})

	// RunDuration tracks end-to-end run wall-clock time.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alloccore_run_duration_seconds",
		Help:    "Run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 330, 600},
	}, []string{"mode"})

	// SolverFallbacksTotal tracks how often a stage fell back to the
	// greedy solver rather than the external one.
	SolverFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alloccore_solver_fallbacks_total",
		Help: "Total times a stage used the greedy fallback instead of the external solver",
	}, []string{"stage"}) // allocation, charging

	// SolverSolveDuration tracks a single solver invocation's latency.
	SolverSolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alloccore_solver_solve_duration_seconds",
		Help:    "External solver call duration in seconds",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 180, 330},
	}, []string{"stage", "status"}) // status: ok, timeout, unavailable

	// InfeasibleRunsTotal tracks runs that completed with status=Failed.
	InfeasibleRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alloccore_infeasible_runs_total",
		Help: "Total runs whose allocation came back infeasible",
	}, []string{"stage"})

	// RoutesAllocatedRatio tracks coverage per allocation run.
	RoutesAllocatedRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alloccore_routes_allocated_ratio",
		Help:    "Fraction of in-window routes allocated, per run",
		Buckets: []float64{0, 0.25, 0.5, 0.75, 0.9, 1.0},
	})

	// ShortfallTotal tracks total unmet charging demand in kWh.
	ShortfallTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alloccore_charge_shortfall_kwh_total",
		Help: "Total unmet charging demand in kWh across runs",
	})

	// ==================== Infrastructure Metrics ====================

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alloccore_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path", "status"})

	// HTTPRequestsTotal tracks total HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alloccore_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// DatabaseLatency tracks database query latency.
	DatabaseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alloccore_database_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "table"})

	// CacheHitsTotal tracks cache hits and misses.
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alloccore_cache_hits_total",
		Help: "Total cache hits and misses",
	}, []string{"result"}) // hit, miss

	// MessageQueueMessagesTotal tracks message queue publishes.
	MessageQueueMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alloccore_mq_messages_total",
		Help: "Total message queue messages",
	}, []string{"subject", "status"}) // status: published, failed
)

// RecordRun records a completed run's mode, status, and duration.
func RecordRun(mode, status string, durationSeconds float64) {
	RunsTotal.WithLabelValues(mode, status).Inc()
	RunDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordSolverCall records one solver invocation's outcome and
// latency, and counts a fallback when status is not "ok".
func RecordSolverCall(stage, status string, durationSeconds float64) {
	SolverSolveDuration.WithLabelValues(stage, status).Observe(durationSeconds)
	if status != "ok" {
		SolverFallbacksTotal.WithLabelValues(stage).Inc()
	}
}

// RecordInfeasible records a stage that completed without a feasible
// result.
func RecordInfeasible(stage string) {
	InfeasibleRunsTotal.WithLabelValues(stage).Inc()
}

// RecordAllocationCoverage records one allocation run's route coverage.
func RecordAllocationCoverage(routesAllocated, routesInWindow int) {
	if routesInWindow == 0 {
		return
	}
	RoutesAllocatedRatio.Observe(float64(routesAllocated) / float64(routesInWindow))
}

// RecordShortfall adds a run's total charge shortfall in kWh.
func RecordShortfall(kwh float64) {
	ShortfallTotal.Add(kwh)
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, durationSeconds float64) {
	statusStr := fmt.Sprintf("%d", status)
	HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(durationSeconds)
}

// RecordCacheAccess records a cache access metric.
func RecordCacheAccess(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheHitsTotal.WithLabelValues(result).Inc()
}

// RecordMessagePublish records a message queue publish attempt.
func RecordMessagePublish(subject string, err error) {
	status := "published"
	if err != nil {
		status = "failed"
	}
	MessageQueueMessagesTotal.WithLabelValues(subject, status).Inc()
}
