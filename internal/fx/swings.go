package fx

import (
	"fmt"
	"math"

	"github.com/azusa152/Folio/internal/calculator"
	"github.com/azusa152/Folio/internal/model"
)

// SwingConfig holds the three window sizes and their independent absolute
// percentage thresholds for rate-change classification.
type SwingConfig struct {
	DailySpikePct   float64
	SwingPct        float64
	TrendPct        float64
	ShortWindowDays int
	LongWindowDays  int
}

// AnalyzeRateChanges classifies one pair's history against three change
// windows: the last two points (daily spike), the short window (swing), and
// the long window (trend). Each window that meets its own threshold emits one
// alert; windows with too little history emit nothing.
func AnalyzeRateChanges(base, quote string, history model.PriceSeries, cfg SwingConfig) []model.RateAlert {
	rate, ok := history.Last()
	if !ok {
		return nil
	}
	var alerts []model.RateAlert

	add := func(kind model.RateAlertKind, window model.PriceSeries, threshold float64, label string) {
		closes := window.Closes()
		change, ok := calculator.PercentChange(closes, 0, len(closes)-1)
		if !ok || math.Abs(change) < threshold {
			return
		}
		dir := model.DirectionUp
		if change < 0 {
			dir = model.DirectionDown
		}
		alerts = append(alerts, model.RateAlert{
			Base:        base,
			Quote:       quote,
			Kind:        kind,
			ChangePct:   change,
			Direction:   dir,
			CurrentRate: rate,
			PeriodLabel: label,
		})
	}

	add(model.RateAlertDailySpike, history.Tail(2), cfg.DailySpikePct, "1d")
	add(model.RateAlertShortSwing, history.Tail(cfg.ShortWindowDays), cfg.SwingPct, fmt.Sprintf("%dd", cfg.ShortWindowDays))
	add(model.RateAlertLongTrend, history.Tail(cfg.LongWindowDays), cfg.TrendPct, fmt.Sprintf("%dd", cfg.LongWindowDays))
	return alerts
}

// RiskFor returns the most severe risk level present in the alerts:
// daily spike > short swing > long trend > none.
func RiskFor(alerts []model.RateAlert) model.RiskLevel {
	var swing, trend bool
	for _, a := range alerts {
		switch a.Kind {
		case model.RateAlertDailySpike:
			return model.RiskHigh
		case model.RateAlertShortSwing:
			swing = true
		case model.RateAlertLongTrend:
			trend = true
		}
	}
	switch {
	case swing:
		return model.RiskMedium
	case trend:
		return model.RiskLow
	}
	return model.RiskNone
}
