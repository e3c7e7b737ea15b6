package calculator

import (
	"math"

	"TrendSpotter/internal/model"
)

// GainsFromPrices derives 7-day and 30-day gain percentages from a daily
// close series, oldest first, measured against the first sample. Quote
// sources that only publish short-window changes get their 30-day figure
// backfilled this way once history is available. Returns ok=false when
// fewer than 30 samples are present or the base price is not positive.
func GainsFromPrices(prices []float64) (model.Gains, bool) {
	if len(prices) < 30 {
		return model.Gains{}, false
	}
	base := prices[0]
	if base <= 0 {
		return model.Gains{}, false
	}
	return model.Gains{
		D7:  round2((prices[6] - base) / base * 100),
		D30: round2((prices[29] - base) / base * 100),
	}, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
