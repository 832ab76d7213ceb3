package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions    prometheus.Gauge
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	sweepRemovedTotal *prometheus.CounterVec
	touchFailures     prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sessions_active",
					Help: "Current number of readable, unexpired session records.",
				},
			),
			operationsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_operations_total",
					Help: "Total session store operations by operation and status.",
				},
				[]string{"op", "status"},
			),
			operationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "session_operation_duration_seconds",
					Help:    "Session store operation duration in seconds by operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op"},
			),
			sweepRemovedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_sweep_removed_total",
					Help: "Total session records removed by housekeeping, by reason.",
				},
				[]string{"reason"},
			),
			touchFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_touch_failures_total",
					Help: "Total failed best-effort last-access updates.",
				},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.operationsTotal,
			m.operationDuration,
			m.sweepRemovedTotal,
			m.touchFailures,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// ActiveSessionsGauge exposes the sessions_active gauge for readiness checks and tests.
func ActiveSessionsGauge() prometheus.Gauge {
	return getMetrics().activeSessions
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

// RecordSessionOperation records one store operation. status is one of
// "success", "absent", "invalid" or "error".
func RecordSessionOperation(op, status string, duration time.Duration) {
	m := getMetrics()
	m.operationsTotal.WithLabelValues(op, status).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordSweepRemoved(reason string, count int) {
	if count <= 0 {
		return
	}
	m := getMetrics()
	m.sweepRemovedTotal.WithLabelValues(reason).Add(float64(count))
}

func RecordTouchFailure() {
	m := getMetrics()
	m.touchFailures.Inc()
}
