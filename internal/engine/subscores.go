package engine

import (
	"math"
	"strconv"
	"time"
)

// clip bounds v to [lo, hi].
func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// softCap maps an unbounded non-negative quantity into [0,1) with
// half-saturation at k.
func softCap(x, k float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (x + k)
}

// SpreadScore rewards tight YES bid/ask spreads: 1.0 at zero spread,
// linearly down to 0 at SpreadMax cents.
func SpreadScore(q QuoteSnapshot, cfg ScoringConfig) float64 {
	return clip(1.0-float64(q.Spread())/float64(cfg.SpreadMax), 0, 1)
}

// ActivityScore blends soft-capped 24h volume, soft-capped open interest,
// and a freshness term. Freshness is 1.0 when any of the bid/ask/last
// prices moved since the previous poll; otherwise volume stands in as the
// activity proxy.
func ActivityScore(q QuoteSnapshot, cfg ScoringConfig) float64 {
	vol := softCap(float64(q.Volume24h), cfg.ActivitySoftCap)
	oi := softCap(float64(q.OpenInterest), cfg.ActivitySoftCap)

	freshness := vol
	if q.YesBid != q.PreviousYesBid || q.YesAsk != q.PreviousYesAsk || q.LastPrice != q.PreviousLastPrice {
		freshness = 1.0
	}

	return cfg.ActivityVolumeWeight*vol + cfg.ActivityOIWeight*oi + cfg.ActivityFreshWeight*freshness
}

// MoneynessScore peaks at 1.0 when the mid sits at 50 cents (maximal
// uncertainty) and decays exponentially with distance from it.
func MoneynessScore(q QuoteSnapshot, cfg ScoringConfig) float64 {
	return math.Exp(-math.Abs(float64(q.Mid())-50.0) / cfg.MoneynessKappa)
}

// ParityStack is the maker-side complement of SpreadScore: a wider spread
// means more room for a resting order, saturating at ParityMax cents.
func ParityStack(q QuoteSnapshot, cfg ScoringConfig) float64 {
	return clip(float64(q.Spread())/float64(cfg.ParityMax), 0, 1)
}

// LiquidityScore soft-caps the exchange-reported dollar liquidity.
// Unparsable or non-positive strings contribute zero.
func LiquidityScore(q QuoteSnapshot, cfg ScoringConfig) float64 {
	dollars, err := strconv.ParseFloat(q.LiquidityDollars, 64)
	if err != nil || dollars <= 0 {
		return 0
	}
	return softCap(dollars, cfg.LiquiditySoftCap)
}

// StabilityScore decays exponentially with time since the last persisted
// refresh. A market that was never persisted (nil UpdatedAt) is maximally
// stale and scores exactly zero, strictly below any finite staleness.
func StabilityScore(q QuoteSnapshot, now time.Time, cfg ScoringConfig) float64 {
	if q.UpdatedAt == nil {
		return 0
	}
	stale := now.Sub(*q.UpdatedAt).Seconds()
	return math.Exp(-stale / cfg.StabilityDecaySec)
}
