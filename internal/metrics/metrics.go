// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the supervisor: per-service state, restart
// activity, circuit-breaker bookkeeping, and Control HTTP traffic.

var (
	// ServiceState reports each managed service's current machine state as
	// a 0/1 gauge per (id, state) pair.
	ServiceState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rootd_service_state",
			Help: "Current Service Machine state per managed service (1 for the active state, 0 otherwise)",
		},
		[]string{"id", "state"},
	)

	// ServiceBreakerState mirrors the gobreaker state backing a service's
	// attempt budget (0=closed, 1=half-open, 2=open/exits).
	ServiceBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rootd_service_breaker_state",
			Help: "Circuit breaker state backing each service's restart budget (0=closed, 1=half-open, 2=open)",
		},
		[]string{"id"},
	)

	// ServiceRestartsTotal counts every invocation attempt of a service.
	ServiceRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rootd_service_restarts_total",
			Help: "Total number of times a service's executable has been invoked",
		},
		[]string{"id"},
	)

	// ServiceConsecutiveFailures mirrors the breaker's consecutive-failure
	// count, i.e. how many short-lived exits have occurred since the last
	// run that satisfied the minimum runtime.
	ServiceConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rootd_service_consecutive_failures",
			Help: "Consecutive short-lived exits for a service since its last good run",
		},
		[]string{"id"},
	)

	// ServiceRuntimeSeconds records how long each invocation ran before exiting.
	ServiceRuntimeSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rootd_service_runtime_seconds",
			Help:    "Observed runtime of a service invocation before it exited",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 16, 30, 60, 300, 900},
		},
		[]string{"id"},
	)

	// ControlRequestsTotal counts Control HTTP requests.
	ControlRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rootd_control_requests_total",
			Help: "Total number of Control HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ControlRequestDuration tracks Control HTTP request latency.
	ControlRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rootd_control_request_duration_seconds",
			Help:    "Control HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path"},
	)

	// ControlActiveRequests tracks in-flight Control HTTP requests.
	ControlActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rootd_control_active_requests",
			Help: "Current number of in-flight Control HTTP requests",
		},
	)

	// ControlRateLimitHits counts requests rejected by rate limiting.
	ControlRateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rootd_control_rate_limit_hits_total",
			Help: "Total number of Control HTTP requests rejected by rate limiting",
		},
	)

	// SupervisorUptime reports process uptime in seconds.
	SupervisorUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rootd_uptime_seconds",
			Help: "Supervisor process uptime in seconds",
		},
	)
)

// machineStates lists every Service Machine state, used to zero out the
// states a service is not currently in.
var machineStates = []string{"terminated", "executed", "waiting", "exits", "exception"}

// SetServiceState marks `state` active for id and every other known state
// inactive, so ServiceState always reflects exactly one active state.
func SetServiceState(id, state string) {
	for _, s := range machineStates {
		if s == state {
			ServiceState.WithLabelValues(id, s).Set(1)
		} else {
			ServiceState.WithLabelValues(id, s).Set(0)
		}
	}
}

// RecordInvocation records a service invocation attempt and its runtime.
func RecordInvocation(id string, runtime time.Duration) {
	ServiceRestartsTotal.WithLabelValues(id).Inc()
	ServiceRuntimeSeconds.WithLabelValues(id).Observe(runtime.Seconds())
}

// RecordControlRequest records one Control HTTP request.
func RecordControlRequest(method, path, status string, duration time.Duration) {
	ControlRequestsTotal.WithLabelValues(method, path, status).Inc()
	ControlRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveControlRequest increments or decrements the in-flight gauge.
func TrackActiveControlRequest(inc bool) {
	if inc {
		ControlActiveRequests.Inc()
	} else {
		ControlActiveRequests.Dec()
	}
}
