package model

// TimingVerdict is the outcome of assessing one currency pair's conversion
// timing. It is a derived value, recomputed fresh on every evaluation and
// persisted only as an audit row, never as a source of truth.
type TimingVerdict struct {
	Base                 string  `json:"base"`
	Quote                string  `json:"quote"`
	CurrentRate          float64 `json:"current_rate"`
	IsRecentHigh         bool    `json:"is_recent_high"`
	LookbackHigh         float64 `json:"lookback_high"`
	LookbackDays         int     `json:"lookback_days"`
	ConsecutiveIncreases int     `json:"consecutive_increases"`
	ConsecutiveThreshold int     `json:"consecutive_threshold"`
	ShouldAlert          bool    `json:"should_alert"`
	Recommendation       string  `json:"recommendation"`
	Reasoning            string  `json:"reasoning"`
}

// Pair renders the verdict's currency pair as "BASE/QUOTE".
func (v TimingVerdict) Pair() string { return v.Base + "/" + v.Quote }

// RateAlertKind tags which change window triggered a rate alert.
type RateAlertKind string

const (
	RateAlertDailySpike RateAlertKind = "daily_spike"
	RateAlertShortSwing RateAlertKind = "short_swing"
	RateAlertLongTrend  RateAlertKind = "long_trend"
)

// Direction is the sign of a rate move.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// RateAlert is one window's threshold breach for a currency pair.
type RateAlert struct {
	Base        string        `json:"base"`
	Quote       string        `json:"quote"`
	Kind        RateAlertKind `json:"kind"`
	ChangePct   float64       `json:"change_pct"`
	Direction   Direction     `json:"direction"`
	CurrentRate float64       `json:"current_rate"`
	PeriodLabel string        `json:"period_label"`
}

// RiskLevel summarizes a set of rate alerts by their most severe window:
// a daily spike outranks a short swing, which outranks a long trend.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
	RiskNone   RiskLevel = "none"
)
