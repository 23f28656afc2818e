// Package rescore decides which markets deserve an order-book deep scan
// and runs it: fetch the full ladder, derive the book analytics, compute
// the order-book-enhanced score bundle, and persist it alongside the
// quote-path scores.
package rescore

import (
	"github.com/sawpanic/kalshirun/internal/persistence"
)

// Trigger holds the deep-scan admission policy.
type Trigger struct {
	// Threshold is the quote-path score a market must reach before its
	// order book is worth pulling.
	Threshold float64
}

// ShouldRescore reports whether a freshly upserted market warrants a deep
// scan. prev is the row as it stood before the upsert, nil for a new
// market.
//
// A new market triggers when its score clears the threshold. An existing
// market triggers only on the upward crossing: it was below the threshold
// and now is not. Markets already above stay quiet so every crawl does
// not re-pull the same books, and deep-scan score writes never come
// through this path at all, so they can never feed back into it.
func (t Trigger) ShouldRescore(prev *persistence.MarketRecord, curr persistence.MarketRecord) bool {
	if prev == nil {
		return curr.Score > t.Threshold
	}
	return prev.Score < t.Threshold && curr.Score >= t.Threshold
}
