package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	runs             *prometheus.CounterVec // total reconcile runs
	runDuration      prometheus.Histogram   // time per run
	plannedActions   *prometheus.CounterVec // actions computed by the reconciler
	providerRequests *prometheus.CounterVec // panel API requests
	resolverRequests *prometheus.CounterVec // IP echo service requests
	badgerRequests   *prometheus.CounterVec // snapshot store requests
}

// Public interface for metrics operations
func (m *Metrics) IncRun(success bool) {
	m.runs.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) SetRunDuration(duration time.Duration) {
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncPlannedAction(kind, recordType string) {
	if kind == "" || recordType == "" {
		return
	}
	m.plannedActions.WithLabelValues(kind, recordType).Inc()
}

func (m *Metrics) IncProviderRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	m.providerRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

func (m *Metrics) IncResolverRequest(service string, success bool) {
	if service == "" {
		return
	}
	m.resolverRequests.WithLabelValues(service, boolToResult(success)).Inc()
}

func (m *Metrics) IncBadgerRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	m.badgerRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "list", "add", "remove", "read", "write":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "dnsdrift"

	m := &Metrics{
		registry: registry,

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of reconcile runs",
		}, []string{"status"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of reconcile runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		plannedActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planned_actions_total",
			Help:      "Total reconcile actions computed",
		}, []string{"kind", "type"}),

		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total DNS panel API requests",
		}, []string{"operation", "status"}),

		resolverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_requests_total",
			Help:      "Total external IP service requests",
		}, []string{"service", "status"}),

		badgerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badgerdb_requests_total",
			Help:      "Total badgerdb requests",
		}, []string{"operation", "status"}),
	}

	if register {
		registry.MustRegister(
			m.runs,
			m.runDuration,
			m.plannedActions,
			m.providerRequests,
			m.resolverRequests,
			m.badgerRequests,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
