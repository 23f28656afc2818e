package engine

import (
	"math"
	"testing"
	"time"
)

func TestTimeToCloseWeightSteps(t *testing.T) {
	cfg := DefaultScoringConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		hoursToClose float64
		expected     float64
	}{
		{1, 1.0},
		{2, 1.0},
		{3, 0.7},
		{8, 0.7},
		{12, 0.4},
		{24, 0.4},
		{48, 0.2},
		{0, 0.2},  // closing this instant
		{-5, 0.2}, // already closed: weighted like far-future, not zero
	}

	for _, tc := range testCases {
		closeTime := now.Add(time.Duration(tc.hoursToClose * float64(time.Hour)))
		got := TimeToCloseWeight(closeTime, now, cfg)
		if got != tc.expected {
			t.Errorf("TimeToCloseWeight(%+.0fh) = %.2f, want %.2f", tc.hoursToClose, got, tc.expected)
		}
	}
}

func activeQuote(now time.Time) QuoteSnapshot {
	updated := now.Add(-60 * time.Second)
	return QuoteSnapshot{
		Ticker:            "PRES-24-DEM",
		YesBid:            48,
		YesAsk:            52,
		NoBid:             48,
		NoAsk:             52,
		LastPrice:         50,
		PreviousYesBid:    47,
		PreviousYesAsk:    52,
		PreviousLastPrice: 49,
		Volume24h:         5000,
		OpenInterest:      12000,
		LiquidityDollars:  "2500.00",
		CloseTime:         now.Add(90 * time.Minute),
		UpdatedAt:         &updated,
	}
}

func TestScoreFromQuoteIdempotent(t *testing.T) {
	cfg := DefaultScoringConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := activeQuote(now)

	first := ScoreFromQuote(q, now, cfg)
	second := ScoreFromQuote(q, now, cfg)

	if first != second {
		t.Errorf("repeated evaluation diverged: %+v vs %+v", first, second)
	}
}

func TestScoreFromQuoteComposition(t *testing.T) {
	cfg := DefaultScoringConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := activeQuote(now)

	bundle := ScoreFromQuote(q, now, cfg)

	wantTaker := SpreadScore(q, cfg) * ActivityScore(q, cfg) * MoneynessScore(q, cfg)
	wantMaker := ParityStack(q, cfg) * LiquidityScore(q, cfg) * StabilityScore(q, now, cfg)
	wantRaw := 0.6*wantTaker + 0.4*wantMaker

	if math.Abs(bundle.TakerPotential-wantTaker) > 1e-12 {
		t.Errorf("TakerPotential = %.9f, want %.9f", bundle.TakerPotential, wantTaker)
	}
	if math.Abs(bundle.MakerPotential-wantMaker) > 1e-12 {
		t.Errorf("MakerPotential = %.9f, want %.9f", bundle.MakerPotential, wantMaker)
	}
	if math.Abs(bundle.RawScore-wantRaw) > 1e-12 {
		t.Errorf("RawScore = %.9f, want %.9f", bundle.RawScore, wantRaw)
	}
	// Closes in 90 minutes: full time weight.
	if math.Abs(bundle.Score-wantRaw) > 1e-12 {
		t.Errorf("Score = %.9f, want raw %.9f at full weight", bundle.Score, wantRaw)
	}

	for name, v := range map[string]float64{
		"taker": bundle.TakerPotential,
		"maker": bundle.MakerPotential,
		"raw":   bundle.RawScore,
		"score": bundle.Score,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s = %.6f outside [0,1]", name, v)
		}
	}
}

func TestScoreFromOrderbookEmptyBookIsZero(t *testing.T) {
	cfg := DefaultScoringConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := activeQuote(now)

	bundle := ScoreFromOrderbook(q, OrderbookSnapshot{}, now, cfg)

	// Degenerate defaulting applies only inside the rescorer: the missing
	// spread becomes 0 here, but zero depth still forces every output to
	// 0.0 rather than a "perfect" score.
	if bundle.TakerPotential != 0.0 || bundle.MakerPotential != 0.0 || bundle.RawScore != 0.0 || bundle.Score != 0.0 {
		t.Errorf("empty orderbook bundle = %+v, want all zeros", bundle)
	}
}

func TestScoreFromOrderbookLockedBook(t *testing.T) {
	cfg := DefaultScoringConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := activeQuote(now)

	ob := OrderbookSnapshot{
		Yes: []OrderbookLevel{{Price: 48, Quantity: 500}},
		No:  []OrderbookLevel{{Price: 52, Quantity: 400}},
	}

	bundle := ScoreFromOrderbook(q, ob, now, cfg)

	// Zero spread: narrow=1, wide=0 so the maker side vanishes.
	if bundle.MakerPotential != 0.0 {
		t.Errorf("MakerPotential on locked book = %.6f, want 0", bundle.MakerPotential)
	}

	// taker = narrow * max(D_ask, D_bid) * tiltScore.
	depthAsk := 400.0 / (400.0 + 1000.0)
	depthBid := 500.0 / (500.0 + 1000.0)
	mid := 48.0
	micro := 48.0 // (48*400 + 48*400) / 800
	tiltScore := 0.5 + (micro-mid)/(2*1.5)
	wantTaker := 1.0 * math.Max(depthAsk, depthBid) * tiltScore

	if math.Abs(bundle.TakerPotential-wantTaker) > 1e-12 {
		t.Errorf("TakerPotential = %.9f, want %.9f", bundle.TakerPotential, wantTaker)
	}
	if math.Abs(bundle.RawScore-0.6*wantTaker) > 1e-12 {
		t.Errorf("RawScore = %.9f, want %.9f", bundle.RawScore, 0.6*wantTaker)
	}
}

func TestScoreFromOrderbookIdempotent(t *testing.T) {
	cfg := DefaultScoringConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := activeQuote(now)
	ob := OrderbookSnapshot{
		Yes: []OrderbookLevel{{Price: 44, Quantity: 120}, {Price: 41, Quantity: 80}},
		No:  []OrderbookLevel{{Price: 51, Quantity: 200}},
	}

	first := ScoreFromOrderbook(q, ob, now, cfg)
	second := ScoreFromOrderbook(q, ob, now, cfg)
	if first != second {
		t.Errorf("rescorer not idempotent: %+v vs %+v", first, second)
	}
}
