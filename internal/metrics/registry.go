// Package metrics holds the Prometheus instrumentation for the crawler,
// the rescorer, and the exchange client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for kalshirun.
type Registry struct {
	// Crawl cycle metrics
	CrawlDuration  prometheus.Histogram
	CrawlsTotal    *prometheus.CounterVec
	MarketsCrawled prometheus.Counter
	MarketsChanged prometheus.Counter
	CrawlBatchSize prometheus.Gauge
	LastCrawlUnix  prometheus.Gauge

	// Deep-scan metrics
	RescoresTotal   *prometheus.CounterVec
	RescoreDuration prometheus.Histogram

	// Exchange client metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	// Event metrics
	EventsPublished *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates the metrics registry with every kalshirun metric
// pre-registered on its own Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		CrawlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kalshirun_crawl_duration_seconds",
			Help:    "Duration of a full market crawl cycle in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		CrawlsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kalshirun_crawls_total",
			Help: "Total crawl cycles by result",
		}, []string{"result"}),
		MarketsCrawled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kalshirun_markets_crawled_total",
			Help: "Total market rows fetched from the exchange",
		}),
		MarketsChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kalshirun_markets_changed_total",
			Help: "Total markets whose data hash changed on crawl",
		}),
		CrawlBatchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kalshirun_crawl_batch_size",
			Help: "Markets seen in the most recent crawl cycle",
		}),
		LastCrawlUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kalshirun_last_crawl_timestamp_seconds",
			Help: "Unix time of the last completed crawl cycle",
		}),
		RescoresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kalshirun_rescores_total",
			Help: "Total deep scans by result",
		}, []string{"result"}),
		RescoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kalshirun_rescore_duration_seconds",
			Help:    "Duration of one order-book deep scan in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kalshirun_api_requests_total",
			Help: "Exchange API requests by endpoint and result",
		}, []string{"endpoint", "result"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kalshirun_api_latency_seconds",
			Help:    "Exchange API request latency in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kalshirun_events_published_total",
			Help: "Engine events published by event name",
		}, []string{"event"}),
		registry: prometheus.NewRegistry(),
	}

	r.registry.MustRegister(
		r.CrawlDuration,
		r.CrawlsTotal,
		r.MarketsCrawled,
		r.MarketsChanged,
		r.CrawlBatchSize,
		r.LastCrawlUnix,
		r.RescoresTotal,
		r.RescoreDuration,
		r.APIRequests,
		r.APILatency,
		r.EventsPublished,
	)

	return r
}

// Prometheus exposes the underlying registry for the /metrics handler.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}
