// Package telemetry holds the exporter's own metrics: how long each server
// takes to scrape and which phases or players failed. They are served on a
// separate path from the fleet document.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mpe"

// Metrics is safe for concurrent use by simultaneous scrape requests.
type Metrics struct {
	Registry *prometheus.Registry

	ScrapeDuration *prometheus.HistogramVec
	PhaseFailures  *prometheus.CounterVec
	PlayersSkipped *prometheus.CounterVec
	ServerFailures *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ScrapeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "server_scrape_duration_seconds",
			Help:      "Time spent collecting all phases of one server.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"server"}),
		PhaseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_failures_total",
			Help:      "Scrape phases that failed and were left out of the document.",
		}, []string{"server", "phase"}),
		PlayersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_skipped_total",
			Help:      "Player records skipped because they could not be read, decoded or resolved.",
		}, []string{"server", "reason"}),
		ServerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_failures_total",
			Help:      "Servers that contributed nothing to a scrape.",
		}, []string{"server"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScrapeDuration,
		m.PhaseFailures,
		m.PlayersSkipped,
		m.ServerFailures,
	)
	return m
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
