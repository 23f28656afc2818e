package rescore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/kalshirun/internal/persistence"
)

func TestTrigger_ShouldRescore(t *testing.T) {
	trig := Trigger{Threshold: 0.1}

	rec := func(score float64) persistence.MarketRecord {
		return persistence.MarketRecord{Ticker: "KX-TEST", Score: score}
	}
	recP := func(score float64) *persistence.MarketRecord {
		r := rec(score)
		return &r
	}

	tests := []struct {
		name string
		prev *persistence.MarketRecord
		curr persistence.MarketRecord
		want bool
	}{
		{name: "new_market_above_threshold", prev: nil, curr: rec(0.3), want: true},
		{name: "new_market_at_threshold", prev: nil, curr: rec(0.1), want: false},
		{name: "new_market_below_threshold", prev: nil, curr: rec(0.05), want: false},
		{name: "upward_crossing", prev: recP(0.05), curr: rec(0.2), want: true},
		{name: "crossing_lands_exactly_on_threshold", prev: recP(0.05), curr: rec(0.1), want: true},
		{name: "already_above_stays_quiet", prev: recP(0.4), curr: rec(0.5), want: false},
		{name: "still_below", prev: recP(0.02), curr: rec(0.08), want: false},
		{name: "downward_crossing", prev: recP(0.4), curr: rec(0.05), want: false},
		{name: "previously_at_threshold_then_above", prev: recP(0.1), curr: rec(0.2), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trig.ShouldRescore(tt.prev, tt.curr))
		})
	}
}
