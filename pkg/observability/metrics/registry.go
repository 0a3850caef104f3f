// Package metrics exposes the Prometheus collectors of providerdesk.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is a dedicated Prometheus registry carrying the providerdesk
// collectors and Go runtime metrics. The collectors are package level, so
// every Registry reports the same values.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates a registry with the providerdesk collectors plus
// extra.
func NewRegistry(extra ...prometheus.Collector) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(appCollectors...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(extra...)
	return &Registry{reg: reg}
}

// Handler serves the registry in the Prometheus exposition format,
// negotiating OpenMetrics when the scraper asks for it.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
