// Package metrics registers the subsystem's Prometheus instrumentation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CacheRequests counts aggregate cache reads by aggregate type and
	// outcome (hit, miss, bypass, error).
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textflow_cache_requests_total",
			Help: "Aggregate cache reads by aggregate type and outcome",
		},
		[]string{"aggregate", "outcome"},
	)

	// DispatchTotal counts task/job dispatches by backend, kind and outcome.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textflow_dispatch_total",
			Help: "Task and job dispatches by backend, kind and outcome",
		},
		[]string{"backend", "kind", "outcome"},
	)

	// ExtensionLoadFailures counts plugin names that failed to resolve.
	ExtensionLoadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textflow_extension_load_failures_total",
			Help: "Plugin resolution failures by capability kind",
		},
		[]string{"capability"},
	)
)

var registerOnce sync.Once

// Init registers all collectors. Must be called once at startup.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(CacheRequests, DispatchTotal, ExtensionLoadFailures)
	})
}
