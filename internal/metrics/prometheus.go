package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arxiv_daily_upstream_requests_total",
			Help: "Total requests issued to the arXiv API",
		},
		[]string{"status"},
	)

	UpstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arxiv_daily_upstream_duration_seconds",
			Help:    "arXiv API request duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30},
		},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arxiv_daily_cache_lookups_total",
			Help: "Cache lookups by outcome",
		},
		[]string{"kind", "outcome"},
	)

	CacheInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arxiv_daily_cache_invalidations_total",
			Help: "Cache keys removed by pattern invalidation",
		},
	)

	PapersSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arxiv_daily_papers_saved_total",
			Help: "New papers persisted",
		},
	)

	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arxiv_daily_sync_runs_total",
			Help: "Daily sync runs by outcome",
		},
		[]string{"outcome"},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arxiv_daily_sync_duration_seconds",
			Help:    "Daily sync run duration in seconds",
			Buckets: []float64{1, 10, 60, 300, 900, 3600},
		},
	)
)

func Register() {
	prometheus.MustRegister(
		UpstreamRequests,
		UpstreamDuration,
		CacheLookups,
		CacheInvalidations,
		PapersSaved,
		SyncRuns,
		SyncDuration,
	)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
