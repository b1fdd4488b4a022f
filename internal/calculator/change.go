package calculator

import "math"

// PercentChange computes ((closes[j] - closes[i]) / closes[i]) * 100 rounded
// to 2 decimals. Returns false when the series has fewer than 2 points, an
// index is out of range, or the base value is not positive.
func PercentChange(closes []float64, i, j int) (float64, bool) {
	if len(closes) < 2 || i < 0 || j < 0 || i >= len(closes) || j >= len(closes) {
		return 0, false
	}
	if closes[i] <= 0 {
		return 0, false
	}
	return Round2((closes[j] - closes[i]) / closes[i] * 100), true
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// Round1 rounds to 1 decimal place.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }
