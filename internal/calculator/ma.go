package calculator

// SMA computes the arithmetic mean of the last `window` closes. In strict
// mode it returns false when fewer than `window` points exist. With relaxed
// enabled it averages over min(len(closes), window) points instead; this
// changes the indicator's meaning for short histories, so relaxed mode is an
// explicit opt-in, never the default.
func SMA(closes []float64, window int, relaxed bool) (float64, bool) {
	if window <= 0 || len(closes) == 0 {
		return 0, false
	}
	n := window
	if len(closes) < window {
		if !relaxed {
			return 0, false
		}
		n = len(closes)
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return Round2(sum / float64(n)), true
}

// Bias computes the percentage deviation of price from a moving average,
// rounded to 1 decimal. Returns false when the average is zero or negative.
func Bias(price, ma float64) (float64, bool) {
	if ma <= 0 {
		return 0, false
	}
	return Round1((price - ma) / ma * 100), true
}
