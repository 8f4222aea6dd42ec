package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// The Record methods accept a nil receiver so callers can run without
// metrics.

// RecordImport records one import run and the rows it committed
func (r *Registry) RecordImport(format string, hosts, links int, err error) {
	if r == nil {
		return
	}
	r.ImportsTotal.WithLabelValues(format, status(err)).Inc()
	if err != nil {
		return
	}
	r.ImportedRowsTotal.WithLabelValues("host").Add(float64(hosts))
	r.ImportedRowsTotal.WithLabelValues("link").Add(float64(links))
}

// RecordSkipped records source entries dropped on purpose
func (r *Registry) RecordSkipped(reason string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.ImportSkippedTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordDispatch records a dispatched command with its duration
func (r *Registry) RecordDispatch(route string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.DispatchTotal.WithLabelValues(route, status(err)).Inc()
	r.DispatchDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordAuthFallback records a key→password fallback
func (r *Registry) RecordAuthFallback() {
	if r == nil {
		return
	}
	r.AuthFallbackTotal.Inc()
}

// RecordLinkTransition records a toggle, impair or clear attempt
func (r *Registry) RecordLinkTransition(operation string, err error) {
	if r == nil {
		return
	}
	r.LinkTransitionsTotal.WithLabelValues(operation, status(err)).Inc()
}

// RecordEndpointSkipped records a link endpoint that produced no command
func (r *Registry) RecordEndpointSkipped(reason string) {
	if r == nil {
		return
	}
	r.LinkEndpointsSkipped.WithLabelValues(reason).Inc()
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically, for the node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
