package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initImportMetrics() {
	r.ImportsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "poclab_imports_total",
			Help: "Inventory and topology imports by source format and outcome",
		},
		[]string{"format", "status"},
	)

	r.ImportedRowsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "poclab_imported_rows_total",
			Help: "Host and link rows committed by imports",
		},
		[]string{"kind"},
	)

	r.ImportSkippedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "poclab_import_skipped_total",
			Help: "Source entries deliberately skipped during import",
		},
		[]string{"reason"},
	)
}

func (r *Registry) initDispatchMetrics() {
	r.DispatchTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "poclab_dispatch_total",
			Help: "Commands dispatched by route and outcome",
		},
		[]string{"route", "status"},
	)

	r.DispatchDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poclab_dispatch_duration_seconds",
			Help:    "Command dispatch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route"},
	)

	r.AuthFallbackTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "poclab_auth_fallback_total",
			Help: "Remote commands that fell back from key to password authentication",
		},
	)
}

func (r *Registry) initLinkMetrics() {
	r.LinkTransitionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "poclab_link_transitions_total",
			Help: "Link state and impairment changes by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	r.LinkEndpointsSkipped = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "poclab_link_endpoints_skipped_total",
			Help: "Link endpoints with no command sent, by reason",
		},
		[]string{"reason"},
	)
}
