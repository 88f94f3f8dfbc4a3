// Package metrics exposes Prometheus counters for the billing service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeExpired   = "expired"
	OutcomeUpstream  = "upstream_error"
	OutcomeInvalid   = "invalid"
	OutcomeDiscarded = "discarded"
	OutcomeError     = "error"
)

// Metrics holds the service's Prometheus collectors behind a private
// registry so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	// Verifications counts client-initiated receipt verifications by
	// platform and outcome.
	Verifications *prometheus.CounterVec
	// RTDNEvents counts storefront push notifications by outcome.
	RTDNEvents *prometheus.CounterVec
	// QuotaUpdates counts account-system quota update calls by outcome.
	QuotaUpdates *prometheus.CounterVec
	// DownstreamEvents counts verified-purchase forwards by outcome.
	DownstreamEvents *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_verifications_total",
			Help: "Receipt verifications by platform and outcome.",
		}, []string{"platform", "outcome"}),
		RTDNEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_rtdn_events_total",
			Help: "Storefront push notifications by outcome.",
		}, []string{"outcome"}),
		QuotaUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_quota_updates_total",
			Help: "Account-system quota updates by outcome.",
		}, []string{"outcome"}),
		DownstreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_downstream_events_total",
			Help: "Verified-purchase events forwarded downstream by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(m.Verifications, m.RTDNEvents, m.QuotaUpdates, m.DownstreamEvents)
	return m
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
