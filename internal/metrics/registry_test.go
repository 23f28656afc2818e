package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegistersWithoutCollision(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.Prometheus())

	// Every metric lives on the instance registry, so two instances must
	// not collide.
	assert.NotPanics(t, func() { NewRegistry() })
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()

	snap := r.Snapshot()
	assert.Zero(t, snap.CrawlsSucceeded)
	assert.Zero(t, snap.MarketsCrawled)

	r.CrawlsTotal.WithLabelValues("success").Inc()
	r.CrawlsTotal.WithLabelValues("success").Inc()
	r.CrawlsTotal.WithLabelValues("error").Inc()
	r.MarketsCrawled.Add(250)
	r.MarketsChanged.Add(12)
	r.RescoresTotal.WithLabelValues("success").Inc()
	r.LastCrawlUnix.Set(1756700000)

	snap = r.Snapshot()
	assert.Equal(t, 2.0, snap.CrawlsSucceeded)
	assert.Equal(t, 1.0, snap.CrawlsFailed)
	assert.Equal(t, 250.0, snap.MarketsCrawled)
	assert.Equal(t, 12.0, snap.MarketsChanged)
	assert.Equal(t, 1.0, snap.Rescores)
	assert.Equal(t, 1756700000.0, snap.LastCrawlUnix)
}
