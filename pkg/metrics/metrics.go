// Package metrics holds the Prometheus collectors for a crawl run.
//
// Every method is safe on a nil *Metrics, so components can take metrics as
// an optional dependency.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"lofterscraper/pkg/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	fetches        *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	cacheLookups   *prometheus.CounterVec
	probes         prometheus.Counter
	harvested      *prometheus.CounterVec
	downloads      *prometheus.CounterVec
	downloadBytes  prometheus.Counter
	roundFailures  *prometheus.GaugeVec
	permanentFails prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lofterscraper_fetches_total",
				Help: "Document fetches, labeled by result.",
			},
			[]string{"result"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lofterscraper_fetch_duration_seconds",
				Help:    "Duration of document fetches in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lofterscraper_cache_lookups_total",
				Help: "Document cache lookups, labeled hit or miss.",
			},
			[]string{"result"},
		),
		probes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lofterscraper_page_probes_total",
				Help: "Page validity probes issued while discovering the page range.",
			},
		),
		harvested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lofterscraper_links_harvested_total",
				Help: "Links harvested, labeled by kind (post or image).",
			},
			[]string{"kind"},
		),
		downloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lofterscraper_downloads_total",
				Help: "Download attempts, labeled by result.",
			},
			[]string{"result"},
		),
		downloadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lofterscraper_download_bytes_total",
				Help: "Bytes written to disk by downloads.",
			},
		),
		roundFailures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lofterscraper_round_failures",
				Help: "Links still failing at the end of each download round.",
			},
			[]string{"round"},
		),
		permanentFails: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lofterscraper_permanent_failures",
				Help: "Links that failed every download round.",
			},
		),
	}

	m.registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.cacheLookups,
		m.probes,
		m.harvested,
		m.downloads,
		m.downloadBytes,
		m.roundFailures,
		m.permanentFails,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveFetch(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result(ok, "ok", "error")).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result(hit, "hit", "miss")).Inc()
}

func (m *Metrics) Probe() {
	if m == nil {
		return
	}
	m.probes.Inc()
}

func (m *Metrics) Harvested(kind string, n int) {
	if m == nil {
		return
	}
	m.harvested.WithLabelValues(kind).Add(float64(n))
}

// Download records one download outcome: "success", "skipped" or "failure".
func (m *Metrics) Download(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.downloadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) RoundFailures(round string, n int) {
	if m == nil {
		return
	}
	m.roundFailures.WithLabelValues(round).Set(float64(n))
}

func (m *Metrics) PermanentFailures(n int) {
	if m == nil {
		return
	}
	m.permanentFails.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Expose serves /metrics on addr in the background. The returned function
// shuts the server down.
func (m *Metrics) Expose(addr string, log logger.Logger) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log.WithField("address", addr).Info("Exposing Prometheus metrics")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Failed to start Prometheus metrics server")
		}
	}()
	return srv.Shutdown
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
