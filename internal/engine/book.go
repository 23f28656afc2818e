package engine

// Order-book analytics. Every quantity that can be undefined because a
// side of the book is empty is returned as a pointer: nil means "unknown",
// which is a different fact from zero (a zero spread or zero imbalance is
// a valid, meaningful observation). Callers must not substitute zero for
// nil outside the documented rescorer defaulting.

// intPtr and floatPtr keep the optional plumbing terse.
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// BestYesBid returns the best (first) YES bid price, or nil when the YES
// side is empty.
func (ob OrderbookSnapshot) BestYesBid() *int {
	if len(ob.Yes) == 0 {
		return nil
	}
	return intPtr(ob.Yes[0].Price)
}

// BestYesBidQty returns the quantity at the best YES bid, or nil.
func (ob OrderbookSnapshot) BestYesBidQty() *int {
	if len(ob.Yes) == 0 {
		return nil
	}
	return intPtr(ob.Yes[0].Quantity)
}

// BestNoBid returns the best (first) NO bid price, or nil when the NO
// side is empty.
func (ob OrderbookSnapshot) BestNoBid() *int {
	if len(ob.No) == 0 {
		return nil
	}
	return intPtr(ob.No[0].Price)
}

// BestNoBidQty returns the quantity at the best NO bid, or nil.
func (ob OrderbookSnapshot) BestNoBidQty() *int {
	if len(ob.No) == 0 {
		return nil
	}
	return intPtr(ob.No[0].Quantity)
}

// YesAskL1 is the synthetic best YES ask, derived from the complementary
// side: a NO bid at price p is a YES ask at 100−p. Nil when the NO side
// is empty.
func (ob OrderbookSnapshot) YesAskL1() *int {
	noBid := ob.BestNoBid()
	if noBid == nil {
		return nil
	}
	return intPtr(100 - *noBid)
}

// YesAskL1Qty is the quantity behind the synthetic best ask, or nil.
func (ob OrderbookSnapshot) YesAskL1Qty() *int {
	return ob.BestNoBidQty()
}

// Spread is yesAskL1 − bestYesBid, nil when either leg is unknown. An
// unknown spread never defaults to zero here; zero is itself a valid
// spread on a locked book.
func (ob OrderbookSnapshot) Spread() *int {
	ask := ob.YesAskL1()
	bid := ob.BestYesBid()
	if ask == nil || bid == nil {
		return nil
	}
	return intPtr(*ask - *bid)
}

// Mid is the floor midpoint of the synthetic ask and the best YES bid,
// nil when either leg is unknown.
func (ob OrderbookSnapshot) Mid() *int {
	ask := ob.YesAskL1()
	bid := ob.BestYesBid()
	if ask == nil || bid == nil {
		return nil
	}
	return intPtr((*ask + *bid) / 2)
}

// DepthAskWithinK sums NO-side quantities priced within k−1 cents of the
// best NO bid. Returns 0 on an empty NO side.
func (ob OrderbookSnapshot) DepthAskWithinK(k int) int {
	if len(ob.No) == 0 {
		return 0
	}
	floor := ob.No[0].Price - (k - 1)
	total := 0
	for _, lvl := range ob.No {
		if lvl.Price >= floor {
			total += lvl.Quantity
		}
	}
	return total
}

// DepthBidWithinK is the YES-side analogue of DepthAskWithinK.
func (ob OrderbookSnapshot) DepthBidWithinK(k int) int {
	if len(ob.Yes) == 0 {
		return 0
	}
	floor := ob.Yes[0].Price - (k - 1)
	total := 0
	for _, lvl := range ob.Yes {
		if lvl.Price >= floor {
			total += lvl.Quantity
		}
	}
	return total
}

// DepthYesTopN sums the quantities of the last n YES levels, the
// worst-priced tail representing visible depth beyond the top of book.
func (ob OrderbookSnapshot) DepthYesTopN(n int) int {
	return tailDepth(ob.Yes, n)
}

// DepthNoTopN is the NO-side analogue of DepthYesTopN.
func (ob OrderbookSnapshot) DepthNoTopN(n int) int {
	return tailDepth(ob.No, n)
}

func tailDepth(levels []OrderbookLevel, n int) int {
	start := len(levels) - n
	if start < 0 {
		start = 0
	}
	total := 0
	for _, lvl := range levels[start:] {
		total += lvl.Quantity
	}
	return total
}

// BookMetrics is the full derived view of one order-book snapshot, in the
// shape the persistence layer stores alongside the ladders.
type BookMetrics struct {
	BestYesBid    *int `json:"best_yes_bid"`
	BestYesBidQty *int `json:"best_yes_bid_qty"`
	BestNoBid     *int `json:"best_no_bid"`
	BestNoBidQty  *int `json:"best_no_bid_qty"`
	YesAskL1      *int `json:"yes_ask_l1"`
	YesAskL1Qty   *int `json:"yes_ask_l1_qty"`

	Spread *int `json:"spread"`
	Mid    *int `json:"mid"`

	BidDepth int `json:"bid_depth"`
	AskDepth int `json:"ask_depth"`

	OBI       *float64 `json:"obi"`
	Micro     *float64 `json:"micro"`
	MicroTilt *float64 `json:"micro_tilt"`
}

// Metrics derives the complete analytics bundle. BidDepth is the visible
// YES tail depth (top-N) and AskDepth the near-touch NO depth (within-K),
// matching what the composite rescorer consumes.
func (ob OrderbookSnapshot) Metrics(cfg ScoringConfig) BookMetrics {
	m := BookMetrics{
		BestYesBid:    ob.BestYesBid(),
		BestYesBidQty: ob.BestYesBidQty(),
		BestNoBid:     ob.BestNoBid(),
		BestNoBidQty:  ob.BestNoBidQty(),
		YesAskL1:      ob.YesAskL1(),
		YesAskL1Qty:   ob.YesAskL1Qty(),
		Spread:        ob.Spread(),
		Mid:           ob.Mid(),
		BidDepth:      ob.DepthYesTopN(cfg.DepthTopN),
		AskDepth:      ob.DepthAskWithinK(cfg.DepthWithinK),
	}

	if total := m.BidDepth + m.AskDepth; total > 0 {
		m.OBI = floatPtr(float64(m.BidDepth-m.AskDepth) / float64(max(1, total)))
	}

	// Compatibility note: the micro-price weights BOTH legs with the
	// synthetic-ask quantity, not bid-qty for the bid leg. Persisted
	// scores depend on this exact formula; see DESIGN.md before touching.
	if m.YesAskL1 != nil && m.BestYesBid != nil && m.YesAskL1Qty != nil {
		qty := *m.YesAskL1Qty
		micro := float64(*m.YesAskL1*qty+*m.BestYesBid*qty) / float64(max(1, 2*qty))
		m.Micro = floatPtr(micro)
	}

	if m.Micro != nil && m.Mid != nil {
		m.MicroTilt = floatPtr(*m.Micro - float64(*m.Mid))
	}

	return m
}
