package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}

var (
	FetchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saludables_fetch_requests_total",
		Help: "Total remote snapshot requests",
	}, []string{"category"})
	FetchSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saludables_fetch_success_total",
		Help: "Total remote snapshot successes",
	}, []string{"category"})
	FetchFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saludables_fetch_fail_total",
		Help: "Total remote snapshot failures by reason",
	}, []string{"category", "reason"})
	FetchDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saludables_fetch_duration_ms",
		Help:    "Remote snapshot request duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"category"})
	CacheReadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saludables_cache_reads_total",
		Help: "Persisted cache reads by result (fresh|stale|miss)",
	}, []string{"category", "result"})
	CacheWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saludables_cache_writes_total",
		Help: "Persisted cache writes by outcome (written|skipped)",
	}, []string{"category", "outcome"})
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saludables_refresh_total",
		Help: "List refreshes by outcome (commit|fail|discard)",
	}, []string{"category", "outcome"})
	RankDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "saludables_rank_duration_ms",
		Help:    "Distance ranking duration in milliseconds",
		Buckets: durationBuckets,
	})
	LocateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "saludables_locate_total",
		Help: "Position resolutions by result (ok|denied|unavailable)",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(FetchRequestsTotal)
	prometheus.MustRegister(FetchSuccessTotal)
	prometheus.MustRegister(FetchFailTotal)
	prometheus.MustRegister(FetchDurationMs)
	prometheus.MustRegister(CacheReadsTotal)
	prometheus.MustRegister(CacheWritesTotal)
	prometheus.MustRegister(RefreshTotal)
	prometheus.MustRegister(RankDurationMs)
	prometheus.MustRegister(LocateTotal)
}

// Handler：暴露已注册指标，供 Prometheus 抓取
func Handler() http.Handler { return promhttp.Handler() }
