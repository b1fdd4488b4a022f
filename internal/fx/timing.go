// Package fx evaluates currency-pair conversion timing: recent-high
// detection, consecutive-rise counting, and multi-window rate-change
// classification.
package fx

import (
	"fmt"
	"math"

	"github.com/azusa152/Folio/internal/model"
)

// DefaultTolerancePct is the near-high tolerance band applied when a config
// leaves it unset.
const DefaultTolerancePct = 2.0

// TimingConfig parameterizes one timing assessment.
type TimingConfig struct {
	LookbackDays         int
	ConsecutiveThreshold int
	// TolerancePct is the near-high band in percent; zero means
	// DefaultTolerancePct.
	TolerancePct float64
}

// RecentHigh reports whether rate is within the tolerance band of the
// maximum close over the last lookbackDays points, and returns that maximum.
// An empty history yields (false, 0); a non-positive maximum forces false.
func RecentHigh(rate float64, history model.PriceSeries, lookbackDays int, tolerancePct float64) (bool, float64) {
	if len(history) == 0 {
		return false, 0
	}
	high := math.Inf(-1)
	for _, p := range history.Tail(lookbackDays) {
		if p.Close > high {
			high = p.Close
		}
	}
	if high <= 0 {
		return false, high
	}
	return rate >= high*(1-tolerancePct/100), high
}

// ConsecutiveIncreases counts strictly increasing adjacent pairs scanning
// backward from the most recent point, stopping at the first flat or falling
// step. Fewer than 2 points counts as 0.
func ConsecutiveIncreases(history model.PriceSeries) int {
	if len(history) < 2 {
		return 0
	}
	count := 0
	for i := len(history) - 1; i > 0; i-- {
		if history[i].Close <= history[i-1].Close {
			break
		}
		count++
	}
	return count
}

// AssessTiming combines recent-high detection and consecutive-rise counting
// into a TimingVerdict for one currency pair. It is a pure function of its
// inputs; identical inputs produce identical verdicts.
func AssessTiming(base, quote string, history model.PriceSeries, cfg TimingConfig) model.TimingVerdict {
	v := model.TimingVerdict{
		Base:                 base,
		Quote:                quote,
		LookbackDays:         cfg.LookbackDays,
		ConsecutiveThreshold: cfg.ConsecutiveThreshold,
	}
	if len(history) == 0 {
		v.Recommendation = "insufficient history"
		v.Reasoning = fmt.Sprintf("no rate history available for %s/%s", base, quote)
		return v
	}

	tol := cfg.TolerancePct
	if tol == 0 {
		tol = DefaultTolerancePct
	}
	v.CurrentRate, _ = history.Last()
	v.IsRecentHigh, v.LookbackHigh = RecentHigh(v.CurrentRate, history, cfg.LookbackDays, tol)
	v.ConsecutiveIncreases = ConsecutiveIncreases(history)

	momentum := v.ConsecutiveIncreases >= cfg.ConsecutiveThreshold
	switch {
	case v.IsRecentHigh && momentum:
		v.ShouldAlert = true
		v.Recommendation = "consider converting now"
		v.Reasoning = fmt.Sprintf("rate %.4f is within %.1f%% of the %d-day high %.4f and has risen %d sessions in a row (threshold %d)",
			v.CurrentRate, tol, cfg.LookbackDays, v.LookbackHigh, v.ConsecutiveIncreases, cfg.ConsecutiveThreshold)
	case v.IsRecentHigh:
		v.Recommendation = "near high, momentum insufficient; keep watching"
		v.Reasoning = fmt.Sprintf("rate %.4f is near the %d-day high %.4f but only %d consecutive rises (threshold %d)",
			v.CurrentRate, cfg.LookbackDays, v.LookbackHigh, v.ConsecutiveIncreases, cfg.ConsecutiveThreshold)
	case momentum:
		v.Recommendation = "rising but not yet at high; may have more room"
		v.Reasoning = fmt.Sprintf("rate %.4f has risen %d sessions in a row but sits below the %d-day high %.4f",
			v.CurrentRate, v.ConsecutiveIncreases, cfg.LookbackDays, v.LookbackHigh)
	default:
		v.Recommendation = "no signal"
		v.Reasoning = fmt.Sprintf("rate %.4f shows no timing edge over the last %d days",
			v.CurrentRate, cfg.LookbackDays)
	}
	return v
}
