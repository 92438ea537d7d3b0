package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the RankRadar metrics on a dedicated prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	// Batch metrics
	BatchRuns      *prometheus.CounterVec
	BatchDuration  prometheus.Histogram
	AssetsScored   prometheus.Counter
	AssetsSkipped  *prometheus.CounterVec
	ScoresWritten  prometheus.Counter
	WatchMutations *prometheus.CounterVec
	MarketMultiple prometheus.Gauge
	BreakerState   prometheus.Gauge

	// Cache metrics
	CacheRequests *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all metrics.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		BatchRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankradar_batch_runs_total",
				Help: "Batch scoring runs by final status",
			},
			[]string{"status"},
		),

		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rankradar_batch_duration_seconds",
				Help:    "Wall time of a batch scoring run",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
		),

		AssetsScored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rankradar_assets_scored_total",
				Help: "Assets scored across all windows",
			},
		),

		AssetsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankradar_assets_skipped_total",
				Help: "Assets skipped by reason",
			},
			[]string{"reason"},
		),

		ScoresWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rankradar_score_snapshots_written_total",
				Help: "Score snapshots persisted",
			},
		),

		WatchMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankradar_watchlist_mutations_total",
				Help: "Watch-list entries created or changed, by resulting status",
			},
			[]string{"status"},
		),

		MarketMultiple: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankradar_market_context_multiplier",
				Help: "Market multiplier applied in the latest batch",
			},
		),

		BreakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankradar_store_breaker_state",
				Help: "Store read circuit breaker (0=closed, 1=half-open, 2=open)",
			},
		),

		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankradar_cache_requests_total",
				Help: "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankradar_http_requests_total",
				Help: "API requests by route and status code",
			},
			[]string{"route", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankradar_http_request_duration_seconds",
				Help:    "API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.BatchRuns, r.BatchDuration, r.AssetsScored, r.AssetsSkipped, r.ScoresWritten,
		r.WatchMutations, r.MarketMultiple, r.BreakerState,
		r.CacheRequests, r.HTTPRequests, r.HTTPDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// CacheResult records a cache hit or miss.
func (r *Registry) CacheResult(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheRequests.WithLabelValues(cache, result).Inc()
}
