package metrics

import (
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// Snapshot is a point-in-time read of the headline counters, served on
// the status endpoint so operators do not need a Prometheus scrape to
// sanity-check a running instance.
type Snapshot struct {
	CrawlsSucceeded float64 `json:"crawls_succeeded"`
	CrawlsFailed    float64 `json:"crawls_failed"`
	MarketsCrawled  float64 `json:"markets_crawled"`
	MarketsChanged  float64 `json:"markets_changed"`
	Rescores        float64 `json:"rescores"`
	LastCrawlUnix   float64 `json:"last_crawl_unix"`
}

// Snapshot reads the current counter values.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		CrawlsSucceeded: counterValue(r.CrawlsTotal.WithLabelValues("success")),
		CrawlsFailed:    counterValue(r.CrawlsTotal.WithLabelValues("error")),
		MarketsCrawled:  counterValue(r.MarketsCrawled),
		MarketsChanged:  counterValue(r.MarketsChanged),
		Rescores:        counterValue(r.RescoresTotal.WithLabelValues("success")),
		LastCrawlUnix:   gaugeValue(r.LastCrawlUnix),
	}
}

type metricWriter interface {
	Write(*io_prometheus_client.Metric) error
}

func counterValue(m metricWriter) float64 {
	var out io_prometheus_client.Metric
	if err := m.Write(&out); err != nil || out.Counter == nil {
		return 0
	}
	return out.Counter.GetValue()
}

func gaugeValue(m metricWriter) float64 {
	var out io_prometheus_client.Metric
	if err := m.Write(&out); err != nil || out.Gauge == nil {
		return 0
	}
	return out.Gauge.GetValue()
}
