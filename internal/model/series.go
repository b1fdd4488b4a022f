package model

import "time"

// PricePoint is a single close observation for an instrument.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
}

// PriceSeries is an ascending, duplicate-free sequence of price points for
// one instrument. It may be empty or shorter than an indicator needs; every
// consumer defines its own minimum-length policy and degrades instead of
// failing.
type PriceSeries []PricePoint

// Closes returns the close values in series order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

// Last returns the most recent close, or false when the series is empty.
func (s PriceSeries) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Close, true
}

// Tail returns the last n points (the whole series when n exceeds its length).
func (s PriceSeries) Tail(n int) PriceSeries {
	if n <= 0 {
		return nil
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
