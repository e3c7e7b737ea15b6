package calculator

import "math"

// Category is a human-readable quality label for a uniformity score.
type Category string

const (
	CategoryPerfect        Category = "Perfect"
	CategoryExcellent      Category = "Excellent"
	CategoryGood           Category = "Good"
	CategoryFair           Category = "Fair"
	CategoryPoor           Category = "Poor"
	CategoryBad            Category = "Bad"
	CategoryNegativeReturn Category = "Negative Return"
)

// CalculateUniformity scores how evenly a price series climbed across the
// trailing window of the given period. The score is 0-100, where 100 means
// the cumulative percentage-change curve is a perfect straight line from
// zero to the total gain. Both return values are rounded to one decimal.
//
// Degenerate input never errors: a window shorter than period, a
// non-positive base price, or a non-positive total gain all yield a zero
// score. The gain is still reported when it is computable.
func CalculateUniformity(prices []float64, period int) (score, gain float64) {
	if period <= 0 || len(prices) < period {
		return 0, 0
	}

	window := prices[len(prices)-period:]
	base := window[0]
	if base <= 0 {
		return 0, 0
	}

	cum := make([]float64, period)
	for i, p := range window {
		cum[i] = (p - base) / base * 100
	}

	totalGain := cum[period-1]
	if totalGain <= 0 {
		return 0, round1(totalGain)
	}

	dailyUniformGain := totalGain / float64(period-1)
	totalDeviation := 0.0
	for i, c := range cum {
		totalDeviation += math.Abs(c - float64(i)*dailyUniformGain)
	}

	// Heuristic normalizer, not a tight bound. Oscillatory paths can push
	// the ratio past 1; treat those as worst case.
	maxPossibleDeviation := totalGain * float64(period-1)
	normalized := 0.0
	if maxPossibleDeviation > 0 {
		normalized = totalDeviation / maxPossibleDeviation
	}
	if normalized > 1 {
		normalized = 1
	}

	raw := 100 * (1 - math.Sqrt(normalized))
	if raw < 0 {
		raw = 0
	}
	if raw > 100 {
		raw = 100
	}
	return round1(raw), round1(totalGain)
}

// ScoreCategory maps a score and gain to a quality label. A non-positive
// gain always reads as Negative Return regardless of the score.
func ScoreCategory(score, gain float64) Category {
	switch {
	case gain <= 0:
		return CategoryNegativeReturn
	case score >= 90:
		return CategoryPerfect
	case score >= 75:
		return CategoryExcellent
	case score >= 60:
		return CategoryGood
	case score >= 45:
		return CategoryFair
	case score >= 20:
		return CategoryPoor
	default:
		return CategoryBad
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
