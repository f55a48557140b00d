package proxy

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dev-mohitbeniwal/echo/accessproxy/model"
)

// Metrics holds the proxy's prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	sweeps       *prometheus.CounterVec
	sweptEntries *prometheus.CounterVec
	entries      *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "access_proxy_requests_total",
		Help: "Requests answered by the access proxy",
	}, []string{"role", "outcome"})

	sweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "access_proxy_sweeps_total",
		Help: "Background cache sweeps run",
	}, []string{"actor"})

	sweptEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "access_proxy_swept_entries_total",
		Help: "Stale cache entries removed by sweeps",
	}, []string{"actor"})

	entries := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "access_proxy_cache_entries",
		Help: "Entries currently held in the proxy cache",
	}, []string{"actor"})

	registry.MustRegister(requests, sweeps, sweptEntries, entries)

	return &Metrics{
		registry:     registry,
		requests:     requests,
		sweeps:       sweeps,
		sweptEntries: sweptEntries,
		entries:      entries,
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveOutcome(o model.Outcome) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(o.Actor.Role.String(), o.Kind.String()).Inc()
}

func (m *Metrics) ObserveSweep(actor string, removed, remaining int) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(actor).Inc()
	m.sweptEntries.WithLabelValues(actor).Add(float64(removed))
	m.entries.WithLabelValues(actor).Set(float64(remaining))
}

func (m *Metrics) SetEntries(actor string, n int) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(actor).Set(float64(n))
}
