// Package metrics counts imports, command dispatches and link transitions.
//
// poclab is a short-lived CLI, so nothing is scraped; the registry is written
// to a node_exporter textfile at exit when metrics_file is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Import Metrics
	ImportsTotal       *prometheus.CounterVec
	ImportedRowsTotal  *prometheus.CounterVec
	ImportSkippedTotal *prometheus.CounterVec

	// Dispatch Metrics
	DispatchTotal     *prometheus.CounterVec
	DispatchDuration  *prometheus.HistogramVec
	AuthFallbackTotal prometheus.Counter

	// Link Metrics
	LinkTransitionsTotal *prometheus.CounterVec
	LinkEndpointsSkipped *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initImportMetrics()
	r.initDispatchMetrics()
	r.initLinkMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
