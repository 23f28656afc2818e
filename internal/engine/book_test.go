package engine

import (
	"math"
	"testing"
)

func TestBookTopOfBookRoundTrip(t *testing.T) {
	ob := OrderbookSnapshot{
		Yes: []OrderbookLevel{{Price: 48, Quantity: 500}},
		No:  []OrderbookLevel{{Price: 52, Quantity: 400}},
	}

	if got := ob.BestYesBid(); got == nil || *got != 48 {
		t.Fatalf("BestYesBid = %v, want 48", got)
	}
	if got := ob.YesAskL1(); got == nil || *got != 48 {
		t.Fatalf("YesAskL1 = %v, want 48 (100-52)", got)
	}
	if got := ob.Spread(); got == nil || *got != 0 {
		t.Fatalf("Spread = %v, want 0", got)
	}
	if got := ob.Mid(); got == nil || *got != 48 {
		t.Fatalf("Mid = %v, want 48", got)
	}
	if got := ob.YesAskL1Qty(); got == nil || *got != 400 {
		t.Fatalf("YesAskL1Qty = %v, want 400", got)
	}
}

func TestBookEmptySidesStayUnknown(t *testing.T) {
	empty := OrderbookSnapshot{}
	m := empty.Metrics(DefaultScoringConfig())

	if m.Spread != nil {
		t.Errorf("Spread on empty book = %v, want nil (unknown is not zero)", *m.Spread)
	}
	if m.Mid != nil {
		t.Errorf("Mid on empty book = %v, want nil", *m.Mid)
	}
	if m.OBI != nil {
		t.Errorf("OBI on empty book = %v, want nil", *m.OBI)
	}
	if m.Micro != nil {
		t.Errorf("Micro on empty book = %v, want nil", *m.Micro)
	}
	if m.MicroTilt != nil {
		t.Errorf("MicroTilt on empty book = %v, want nil", *m.MicroTilt)
	}
	if m.BidDepth != 0 || m.AskDepth != 0 {
		t.Errorf("depths on empty book = %d/%d, want 0/0", m.BidDepth, m.AskDepth)
	}
}

func TestBookOneSidedSpreadUnknown(t *testing.T) {
	// A YES-only book has a best bid but no synthetic ask: the spread must
	// propagate as unknown, never default to zero.
	yesOnly := OrderbookSnapshot{Yes: []OrderbookLevel{{Price: 30, Quantity: 10}}}

	if got := yesOnly.BestYesBid(); got == nil || *got != 30 {
		t.Fatalf("BestYesBid = %v, want 30", got)
	}
	if yesOnly.YesAskL1() != nil {
		t.Error("YesAskL1 on NO-empty book should be nil")
	}
	if yesOnly.Spread() != nil {
		t.Error("Spread with unknown ask should be nil")
	}
	if yesOnly.Mid() != nil {
		t.Error("Mid with unknown ask should be nil")
	}
}

func TestDepthWithinK(t *testing.T) {
	ob := OrderbookSnapshot{
		Yes: []OrderbookLevel{
			{Price: 48, Quantity: 100},
			{Price: 46, Quantity: 200},
			{Price: 43, Quantity: 400}, // outside 48-4=44 floor
		},
		No: []OrderbookLevel{
			{Price: 52, Quantity: 50},
			{Price: 49, Quantity: 75},
			{Price: 40, Quantity: 999}, // outside 52-4=48 floor
		},
	}

	if got := ob.DepthBidWithinK(5); got != 300 {
		t.Errorf("DepthBidWithinK(5) = %d, want 300", got)
	}
	if got := ob.DepthAskWithinK(5); got != 125 {
		t.Errorf("DepthAskWithinK(5) = %d, want 125", got)
	}

	if got := (OrderbookSnapshot{}).DepthAskWithinK(5); got != 0 {
		t.Errorf("DepthAskWithinK on empty book = %d, want 0", got)
	}
}

func TestDepthTopNUsesWorstPricedTail(t *testing.T) {
	ob := OrderbookSnapshot{
		Yes: []OrderbookLevel{
			{Price: 48, Quantity: 1},
			{Price: 47, Quantity: 2},
			{Price: 46, Quantity: 4},
			{Price: 45, Quantity: 8},
			{Price: 44, Quantity: 16},
			{Price: 43, Quantity: 32},
			{Price: 42, Quantity: 64},
		},
	}

	// Last 5 levels: 4+8+16+32+64.
	if got := ob.DepthYesTopN(5); got != 124 {
		t.Errorf("DepthYesTopN(5) = %d, want 124", got)
	}
	// Short ladders count everything.
	if got := ob.DepthYesTopN(50); got != 127 {
		t.Errorf("DepthYesTopN(50) = %d, want 127", got)
	}
	if got := ob.DepthNoTopN(5); got != 0 {
		t.Errorf("DepthNoTopN(5) on empty NO side = %d, want 0", got)
	}
}

func TestOrderbookImbalance(t *testing.T) {
	cfg := DefaultScoringConfig()
	ob := OrderbookSnapshot{
		Yes: []OrderbookLevel{{Price: 48, Quantity: 300}},
		No:  []OrderbookLevel{{Price: 52, Quantity: 100}},
	}

	m := ob.Metrics(cfg)
	if m.OBI == nil {
		t.Fatal("OBI should be defined when depth exists")
	}
	// bidDepth=300 (tail), askDepth=100 (within-K) -> (300-100)/400.
	if math.Abs(*m.OBI-0.5) > 1e-12 {
		t.Errorf("OBI = %.6f, want 0.5", *m.OBI)
	}
}

func TestMicroUsesAskQuantityForBothLegs(t *testing.T) {
	cfg := DefaultScoringConfig()
	ob := OrderbookSnapshot{
		Yes: []OrderbookLevel{{Price: 40, Quantity: 900}},
		No:  []OrderbookLevel{{Price: 50, Quantity: 100}},
	}

	m := ob.Metrics(cfg)
	if m.Micro == nil {
		t.Fatal("Micro should be defined")
	}

	// yesAskL1 = 50, qty = 100 on BOTH legs: (50*100 + 40*100) / 200 = 45.
	// The 900-lot bid quantity deliberately does not enter the weighting;
	// persisted data depends on this formula.
	if math.Abs(*m.Micro-45.0) > 1e-12 {
		t.Errorf("Micro = %.6f, want 45.0", *m.Micro)
	}

	if m.MicroTilt == nil {
		t.Fatal("MicroTilt should be defined")
	}
	// mid = (50+40)/2 = 45 -> tilt 0.
	if math.Abs(*m.MicroTilt) > 1e-12 {
		t.Errorf("MicroTilt = %.6f, want 0.0", *m.MicroTilt)
	}
}
