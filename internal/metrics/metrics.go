package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Permission set metrics
var (
	// PermissionSetOperationsTotal tracks lifecycle operations by result
	PermissionSetOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_set_operations_total",
			Help: "Total number of permission set operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// PermissionSetOperationDuration tracks lifecycle operation latency
	PermissionSetOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "permission_set_operation_duration_seconds",
			Help:    "Permission set operation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// SeatsMigratedTotal tracks seats moved onto private clones during deletes
	SeatsMigratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "permission_set_seats_migrated_total",
			Help: "Total number of seats migrated to private permission set clones",
		},
	)

	// OrphansSweptTotal tracks private sets removed by the janitor
	OrphansSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "permission_set_orphans_swept_total",
			Help: "Total number of unreferenced private permission sets removed",
		},
	)
)

// Cache metrics
var (
	// PermissionCacheLookupsTotal tracks effective permission cache lookups
	PermissionCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_cache_lookups_total",
			Help: "Effective permission cache lookups by result",
		},
		[]string{"result"},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Result label values
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// ObserveOperation records one lifecycle operation.
func ObserveOperation(operation string, seconds float64, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	PermissionSetOperationsTotal.WithLabelValues(operation, result).Inc()
	PermissionSetOperationDuration.WithLabelValues(operation).Observe(seconds)
}
