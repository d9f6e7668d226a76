package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one process. Each Metrics owns
// its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// WatcherSnapshots counts snapshots merged, by watcher.
	WatcherSnapshots *prometheus.CounterVec
	// WatcherErrors counts watcher failures, by watcher and class.
	WatcherErrors *prometheus.CounterVec
	// ActiveWatchers is the number of running subscriptions.
	ActiveWatchers prometheus.Gauge
	// Mutations counts CMS and checkout writes, by operation and outcome.
	Mutations *prometheus.CounterVec
	// AnalysisRequests counts analysis outcomes: fresh, cached, throttled,
	// fallback.
	AnalysisRequests *prometheus.CounterVec
	// AnalysisLatency observes remote analysis calls.
	AnalysisLatency prometheus.Histogram
	// HTTPRequests counts requests by method, route and status.
	HTTPRequests *prometheus.CounterVec
	// LiveClients is the number of connected live-view websockets.
	LiveClients prometheus.Gauge
}

// NewMetrics creates and registers every collector, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		WatcherSnapshots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atelier",
			Name:      "watcher_snapshots_total",
			Help:      "Snapshots merged into the site configuration.",
		}, []string{"watcher"}),
		WatcherErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atelier",
			Name:      "watcher_errors_total",
			Help:      "Watcher failures by class.",
		}, []string{"watcher", "class"}),
		ActiveWatchers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "atelier",
			Name:      "active_watchers",
			Help:      "Live subscriptions currently running.",
		}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atelier",
			Name:      "mutations_total",
			Help:      "Store writes by operation and outcome.",
		}, []string{"op", "outcome"}),
		AnalysisRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atelier",
			Name:      "analysis_requests_total",
			Help:      "Makeup analysis requests by language and outcome.",
		}, []string{"lang", "outcome"}),
		AnalysisLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "atelier",
			Name:      "analysis_remote_seconds",
			Help:      "Latency of remote analysis calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atelier",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		LiveClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "atelier",
			Name:      "live_clients",
			Help:      "Connected live-view websockets.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
