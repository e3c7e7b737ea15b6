package calculator

import "testing"

func linearPrices(start, step float64, n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + step*float64(i)
	}
	return prices
}

func TestCalculateUniformity_LinearGrowth(t *testing.T) {
	// 100, 102, ..., 158: the cumulative curve is exactly the ideal line.
	prices := linearPrices(100, 2, 30)
	score, gain := CalculateUniformity(prices, 30)
	if score != 100.0 {
		t.Errorf("expected score 100.0 for linear growth, got %.1f", score)
	}
	if gain != 58.0 {
		t.Errorf("expected gain 58.0, got %.1f", gain)
	}
}

func TestCalculateUniformity_NegativeGainReportsGain(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100
	}
	prices[29] = 90
	score, gain := CalculateUniformity(prices, 30)
	if score != 0.0 {
		t.Errorf("expected score 0.0 for negative gain, got %.1f", score)
	}
	if gain != -10.0 {
		t.Errorf("expected gain -10.0, got %.1f", gain)
	}
}

func TestCalculateUniformity_InsufficientData(t *testing.T) {
	score, gain := CalculateUniformity(linearPrices(100, 1, 10), 30)
	if score != 0.0 || gain != 0.0 {
		t.Errorf("expected (0.0, 0.0) for short series, got (%.1f, %.1f)", score, gain)
	}
}

func TestCalculateUniformity_InvalidPeriod(t *testing.T) {
	prices := linearPrices(100, 1, 30)
	for _, period := range []int{0, -1, -30} {
		score, gain := CalculateUniformity(prices, period)
		if score != 0.0 || gain != 0.0 {
			t.Errorf("period %d: expected (0.0, 0.0), got (%.1f, %.1f)", period, score, gain)
		}
	}
}

func TestCalculateUniformity_NonPositiveBase(t *testing.T) {
	zeroBase := append([]float64{0}, linearPrices(10, 0, 29)...)
	score, gain := CalculateUniformity(zeroBase, 30)
	if score != 0.0 || gain != 0.0 {
		t.Errorf("zero base: expected (0.0, 0.0), got (%.1f, %.1f)", score, gain)
	}

	negBase := append([]float64{-5}, linearPrices(10, 0, 29)...)
	score, gain = CalculateUniformity(negBase, 30)
	if score != 0.0 || gain != 0.0 {
		t.Errorf("negative base: expected (0.0, 0.0), got (%.1f, %.1f)", score, gain)
	}
}

func TestCalculateUniformity_FlatSeries(t *testing.T) {
	// Zero total gain counts as non-positive.
	score, gain := CalculateUniformity(linearPrices(100, 0, 30), 30)
	if score != 0.0 || gain != 0.0 {
		t.Errorf("flat series: expected (0.0, 0.0), got (%.1f, %.1f)", score, gain)
	}
}

func TestCalculateUniformity_TrailingWindow(t *testing.T) {
	// Only the last `period` entries matter; a wild prefix must not change
	// the result.
	clean := linearPrices(100, 2, 30)
	prefixed := append([]float64{5000, 1, 900}, clean...)
	score, gain := CalculateUniformity(prefixed, 30)
	if score != 100.0 || gain != 58.0 {
		t.Errorf("expected (100.0, 58.0) ignoring prefix, got (%.1f, %.1f)", score, gain)
	}
}

func TestCalculateUniformity_SpikeScoresBelowSmoothRise(t *testing.T) {
	// Both paths end at +50% over 30 samples.
	smooth := make([]float64, 30)
	for i := range smooth {
		smooth[i] = 100 + 50*float64(i)/29
	}
	spike := make([]float64, 30)
	for i := 0; i <= 14; i++ {
		spike[i] = 100 + 200*float64(i)/14
	}
	for i := 15; i < 30; i++ {
		spike[i] = 300 - 150*float64(i-14)/15
	}

	smoothScore, smoothGain := CalculateUniformity(smooth, 30)
	spikeScore, spikeGain := CalculateUniformity(spike, 30)

	if smoothGain != 50.0 || spikeGain != 50.0 {
		t.Fatalf("expected both gains 50.0, got smooth %.1f spike %.1f", smoothGain, spikeGain)
	}
	if smoothScore != 100.0 {
		t.Errorf("expected smooth path to score 100.0, got %.1f", smoothScore)
	}
	if spikeScore >= smoothScore {
		t.Errorf("spike path (%.1f) should score below smooth path (%.1f)", spikeScore, smoothScore)
	}
	if spikeScore > 10.0 {
		t.Errorf("spike path should score near zero, got %.1f", spikeScore)
	}
}

func TestCalculateUniformity_ScoreAlwaysBounded(t *testing.T) {
	// A handful of rough paths, including ones whose deviation ratio
	// exceeds 1 before clamping.
	paths := [][]float64{
		linearPrices(100, 3, 45),
		{100, 900, 50, 800, 60, 700, 70, 600, 80, 500, 90, 400, 100, 300,
			110, 200, 120, 150, 130, 140, 135, 140, 138, 142, 139, 143, 140,
			144, 141, 145},
		append(linearPrices(100, -1, 15), linearPrices(85, 4, 15)...),
	}
	for i, prices := range paths {
		score, _ := CalculateUniformity(prices, 30)
		if score < 0 || score > 100 {
			t.Errorf("path %d: score %.1f out of [0, 100]", i, score)
		}
	}
}

func TestCalculateUniformity_Idempotent(t *testing.T) {
	prices := []float64{100, 104, 101, 110, 115, 112, 120, 119, 125, 130,
		128, 135, 140, 138, 145, 143, 150, 155, 152, 160, 158, 165, 170,
		168, 175, 173, 180, 185, 182, 190}
	s1, g1 := CalculateUniformity(prices, 30)
	s2, g2 := CalculateUniformity(prices, 30)
	if s1 != s2 || g1 != g2 {
		t.Errorf("expected identical results, got (%.1f, %.1f) then (%.1f, %.1f)", s1, g1, s2, g2)
	}
}

func TestCalculateUniformity_SingleSampleWindow(t *testing.T) {
	// period 1 has zero gain by construction.
	score, gain := CalculateUniformity([]float64{100, 200, 300}, 1)
	if score != 0.0 || gain != 0.0 {
		t.Errorf("period 1: expected (0.0, 0.0), got (%.1f, %.1f)", score, gain)
	}
}

func TestCalculateUniformity_GainRounding(t *testing.T) {
	tests := []struct {
		last float64
		want float64
	}{
		{112.34, 12.3},
		{112.36, 12.4},
		{107.89, 7.9},
	}
	for _, tt := range tests {
		prices := linearPrices(100, 0, 30)
		prices[29] = tt.last
		_, gain := CalculateUniformity(prices, 30)
		if gain != tt.want {
			t.Errorf("last %.2f: expected gain %.1f, got %v", tt.last, tt.want, gain)
		}
	}
}

func TestScoreCategory_AllBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		gain  float64
		want  Category
	}{
		{95, -1, CategoryNegativeReturn},
		{95, 0, CategoryNegativeReturn},
		{95, 5, CategoryPerfect},
		{90, 5, CategoryPerfect},
		{89.9, 5, CategoryExcellent},
		{75, 5, CategoryExcellent},
		{74.9, 5, CategoryGood},
		{60, 5, CategoryGood},
		{59.9, 5, CategoryFair},
		{45, 5, CategoryFair},
		{44.9, 5, CategoryPoor},
		{20, 5, CategoryPoor},
		{19.9, 5, CategoryBad},
		{0, 5, CategoryBad},
	}
	for _, tt := range tests {
		got := ScoreCategory(tt.score, tt.gain)
		if got != tt.want {
			t.Errorf("score %.1f gain %.1f: expected %q, got %q", tt.score, tt.gain, tt.want, got)
		}
	}
}
