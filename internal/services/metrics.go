package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the ranking service's Prometheus collectors.
type Metrics struct {
	RankingRuns     *prometheus.CounterVec
	RankingLatency  prometheus.Histogram
	ItemsScored     prometheus.Counter
	ItemFailures    prometheus.Counter
	FilterFallbacks prometheus.Counter
	IndexBuilds     *prometheus.CounterVec
	IndexDuration   prometheus.Histogram
	IndexItems      prometheus.Gauge
	CacheRequests   *prometheus.CounterVec
	CatalogEvents   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RankingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowrank_ranking_runs_total",
			Help: "Ranking runs by outcome",
		}, []string{"outcome"}),
		RankingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glowrank_ranking_duration_seconds",
			Help:    "Time spent producing a ranking, including history loads",
			Buckets: prometheus.DefBuckets,
		}),
		ItemsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glowrank_items_scored_total",
			Help: "Items returned in computed rankings",
		}),
		ItemFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glowrank_item_scoring_failures_total",
			Help: "Items skipped because scoring them failed",
		}),
		FilterFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glowrank_filter_fallbacks_total",
			Help: "Rankings where hard filters removed every item",
		}),
		IndexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowrank_index_builds_total",
			Help: "Catalog index builds by outcome",
		}, []string{"outcome"}),
		IndexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glowrank_index_build_duration_seconds",
			Help:    "Catalog index build time",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		IndexItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glowrank_index_items",
			Help: "Items in the active catalog index",
		}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowrank_cache_requests_total",
			Help: "Result cache lookups by result",
		}, []string{"result"}),
		CatalogEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowrank_catalog_events_total",
			Help: "Catalog events by action and outcome",
		}, []string{"action", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RankingRuns, m.RankingLatency, m.ItemsScored, m.ItemFailures, m.FilterFallbacks,
			m.IndexBuilds, m.IndexDuration, m.IndexItems, m.CacheRequests, m.CatalogEvents,
		)
	}
	return m
}
