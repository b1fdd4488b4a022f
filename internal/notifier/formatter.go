package notifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/azusa152/Folio/internal/model"
)

func signalEmoji(s model.SignalState) string {
	switch s {
	case model.SignalThesisBroken:
		return "🔴"
	case model.SignalContrarianBuy:
		return "🟢"
	case model.SignalOverheated:
		return "🟡"
	}
	return "⚪"
}

func riskEmoji(r model.RiskLevel) string {
	switch r {
	case model.RiskHigh:
		return "🔴"
	case model.RiskMedium:
		return "🟡"
	case model.RiskLow:
		return "🔵"
	}
	return "⚪"
}

// FormatTimingAlert renders the notification for one fired currency watch.
func FormatTimingAlert(v model.TimingVerdict) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💱 <b>%s conversion window</b>\n\n", v.Pair()))
	b.WriteString(fmt.Sprintf("Rate: %.4f\n", v.CurrentRate))
	b.WriteString(fmt.Sprintf("%d-day high: %.4f\n", v.LookbackDays, v.LookbackHigh))
	b.WriteString(fmt.Sprintf("Rising streak: %d sessions (threshold %d)\n\n", v.ConsecutiveIncreases, v.ConsecutiveThreshold))
	b.WriteString(fmt.Sprintf("<b>%s</b>\n%s", v.Recommendation, v.Reasoning))
	return b.String()
}

// FormatSignalTransition renders a scan-signal change for one instrument.
func FormatSignalTransition(res model.ScanResult, previous model.SignalState) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b> %s → %s\n", signalEmoji(res.Signal), res.Ticker, previous, res.Signal))
	b.WriteString(fmt.Sprintf("Category: %s | Market: %s\n", res.Category, res.Sentiment))
	if res.Snapshot.RSI != nil {
		b.WriteString(fmt.Sprintf("RSI: %.2f", *res.Snapshot.RSI))
		if res.Snapshot.Bias != nil {
			b.WriteString(fmt.Sprintf(" | Bias: %+.1f%%", *res.Snapshot.Bias))
		}
		b.WriteString("\n")
	}
	if res.Margin != nil && res.Margin.Status != model.MoatUnavailable {
		b.WriteString(res.Margin.Detail + "\n")
	}
	for _, note := range res.Notes {
		b.WriteString("• " + note + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatRuleTrigger renders a fired custom threshold rule.
func FormatRuleTrigger(rule model.AlertRule, value float64) string {
	return fmt.Sprintf("🔔 <b>%s</b> rule hit: %s (now %.2f)", rule.Ticker, rule.Describe(), value)
}

// SummaryEntry is one pair's row in the FX swing digest.
type SummaryEntry struct {
	Pair   string
	Rate   float64
	Risk   model.RiskLevel
	Alerts []model.RateAlert
}

// FormatFXSummary renders the periodic swing digest across all watched pairs.
func FormatFXSummary(entries []SummaryEntry) string {
	var b strings.Builder
	b.WriteString("💱 <b>FX swing digest</b>\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("\n%s <b>%s</b> %.4f (risk: %s)\n", riskEmoji(e.Risk), e.Pair, e.Rate, e.Risk))
		if len(e.Alerts) == 0 {
			b.WriteString("• no notable moves\n")
			continue
		}
		for _, a := range e.Alerts {
			arrow := "📈"
			if a.Direction == model.DirectionDown {
				arrow = "📉"
			}
			b.WriteString(fmt.Sprintf("• %s %s %+.2f%% over %s\n", arrow, a.Kind, a.ChangePct, a.PeriodLabel))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatWatchList renders fresh verdicts for the /watches command.
func FormatWatchList(verdicts []model.TimingVerdict) string {
	if len(verdicts) == 0 {
		return "No active watches."
	}
	var b strings.Builder
	b.WriteString("👀 <b>Active watches</b>\n")
	for _, v := range verdicts {
		marker := "▫️"
		if v.ShouldAlert {
			marker = "✅"
		}
		b.WriteString(fmt.Sprintf("\n%s <b>%s</b> %.4f\n%s\n", marker, v.Pair(), v.CurrentRate, v.Recommendation))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatScanReport renders the one-line-per-fact cycle summary used by the
// /scan command reply.
func FormatScanReport(r model.ScanReport) string {
	var b strings.Builder
	b.WriteString("📊 <b>Scan cycle complete</b>\n\n")
	b.WriteString(fmt.Sprintf("Evaluated: %d (errors: %d)\n", r.Evaluated, r.FetchErrors))
	b.WriteString(fmt.Sprintf("Market: %s (%.0f%% below short MA)\n", r.Sentiment, r.BreadthRatio*100))
	signals := make([]model.SignalState, 0, len(r.Signals))
	for signal := range r.Signals {
		if signal != model.SignalNormal && r.Signals[signal] > 0 {
			signals = append(signals, signal)
		}
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i] < signals[j] })
	for _, signal := range signals {
		b.WriteString(fmt.Sprintf("%s %s: %d\n", signalEmoji(signal), signal, r.Signals[signal]))
	}
	b.WriteString(fmt.Sprintf("Transitions: %d | Rules fired: %d", r.Transitions, r.RulesFired))
	return b.String()
}
