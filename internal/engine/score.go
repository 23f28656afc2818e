package engine

import (
	"math"
	"time"
)

// TimeToCloseWeight is the step function applied to raw scores by hours
// remaining until close. It is pure in closeTime and now: markets closing
// within 2h carry full weight, then 0.7 to 8h, 0.4 to 24h, and the
// far-future weight beyond that. Already-closed markets take the
// far-future weight too, not zero.
func TimeToCloseWeight(closeTime, now time.Time, cfg ScoringConfig) float64 {
	hours := closeTime.Sub(now).Hours()
	switch {
	case hours > 0 && hours <= 2:
		return cfg.TimeToClose.Under2h
	case hours > 2 && hours <= 8:
		return cfg.TimeToClose.Under8h
	case hours > 8 && hours <= 24:
		return cfg.TimeToClose.Under24h
	default:
		return cfg.TimeToClose.Default
	}
}

// ScoreFromQuote computes the quote-only ranking bundle. The same now is
// used for every sub-score so staleness and time-to-close never disagree
// about the evaluation instant. Calling it twice on unchanged inputs
// yields bit-identical output.
func ScoreFromQuote(q QuoteSnapshot, now time.Time, cfg ScoringConfig) ScoreBundle {
	taker := math.Pow(SpreadScore(q, cfg), cfg.SpreadExponent) *
		math.Pow(ActivityScore(q, cfg), cfg.ActivityExponent) *
		math.Pow(MoneynessScore(q, cfg), cfg.MoneynessExponent)

	maker := ParityStack(q, cfg) * LiquidityScore(q, cfg) * StabilityScore(q, now, cfg)

	raw := cfg.TakerWeight*taker + cfg.MakerWeight*maker

	return ScoreBundle{
		TakerPotential: taker,
		MakerPotential: maker,
		RawScore:       raw,
		Score:          raw * TimeToCloseWeight(q.CloseTime, now, cfg),
	}
}

// ScoreFromOrderbook recomputes the bundle with order-book depth and
// imbalance substituted for the lighter quote-only proxies. Within this
// rescorer only, a book that cannot yield a spread, imbalance, or tilt is
// treated as "no edge" and those inputs default to zero; the analytics in
// book.go keep them nil. An entirely empty book therefore scores 0.0
// everywhere rather than erroring or inheriting a perfect zero-spread
// score.
func ScoreFromOrderbook(q QuoteSnapshot, ob OrderbookSnapshot, now time.Time, cfg ScoringConfig) ScoreBundle {
	m := ob.Metrics(cfg)

	depthAsk := softCap(float64(ob.DepthAskWithinK(cfg.DepthWithinK)), cfg.DepthSoftCap)
	depthBid := softCap(float64(ob.DepthBidWithinK(cfg.DepthWithinK)), cfg.DepthSoftCap)
	tailTotal := float64(ob.DepthYesTopN(cfg.DepthTopN) + ob.DepthNoTopN(cfg.DepthTopN))
	depthTotal := softCap(tailTotal, cfg.TotalDepthSoftCap)

	spread := 0.0
	if m.Spread != nil {
		spread = float64(*m.Spread)
	}

	obi := 0.0
	if m.OBI != nil {
		obi = *m.OBI
	}

	tilt := 0.0
	if m.MicroTilt != nil {
		tilt = *m.MicroTilt
	}

	narrow := clip(1.0-spread/float64(cfg.SpreadMax), 0, 1)
	wide := clip(spread/float64(cfg.ParityMax), 0, 1)
	obiBalance := 1.0 - math.Abs(obi)
	tiltScore := clip(0.5+tilt/(2*cfg.MicroTiltScale), 0, 1)

	taker := narrow * math.Max(depthAsk, depthBid) * tiltScore
	maker := wide * depthTotal * obiBalance

	raw := cfg.TakerWeight*taker + cfg.MakerWeight*maker

	return ScoreBundle{
		TakerPotential: taker,
		MakerPotential: maker,
		RawScore:       raw,
		Score:          raw * TimeToCloseWeight(q.CloseTime, now, cfg),
	}
}
