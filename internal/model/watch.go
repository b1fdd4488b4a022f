package model

import (
	"fmt"
	"time"
)

// Watch is a cooldown-gated currency pair watch. LastAlertedAt is the only
// long-lived mutable field the engine writes back, and only through the
// dispatcher's mark step after a successful send.
type Watch struct {
	ID                   int64      `json:"id" yaml:"id"`
	Base                 string     `json:"base" yaml:"base" validate:"len=3,alpha"`
	Quote                string     `json:"quote" yaml:"quote" validate:"len=3,alpha,nefield=Base"`
	LookbackDays         int        `json:"lookback_days" yaml:"lookback_days" validate:"min=2"`
	ConsecutiveThreshold int        `json:"consecutive_threshold" yaml:"consecutive_threshold" validate:"min=1"`
	CooldownHours        int        `json:"cooldown_hours" yaml:"cooldown_hours" validate:"min=0"`
	IsActive             bool       `json:"is_active" yaml:"is_active"`
	LastAlertedAt        *time.Time `json:"last_alerted_at,omitempty" yaml:"-"`
}

// Pair renders the watch's currency pair as "BASE/QUOTE".
func (w Watch) Pair() string { return w.Base + "/" + w.Quote }

// Cooldown returns the configured cooldown as a duration.
func (w Watch) Cooldown() time.Duration {
	return time.Duration(w.CooldownHours) * time.Hour
}

// AlertMetric selects which snapshot field a custom alert rule compares.
type AlertMetric string

const (
	MetricPrice AlertMetric = "price"
	MetricRSI   AlertMetric = "rsi"
	MetricBias  AlertMetric = "bias"
)

// AlertOp is the comparison direction of a custom alert rule.
type AlertOp string

const (
	OpLessThan    AlertOp = "lt"
	OpGreaterThan AlertOp = "gt"
)

// AlertRule is a user-defined threshold alert on one instrument's snapshot,
// gated by its own cooldown.
type AlertRule struct {
	ID              int64       `json:"id" yaml:"id"`
	Ticker          string      `json:"ticker" yaml:"ticker" validate:"required"`
	Metric          AlertMetric `json:"metric" yaml:"metric" validate:"oneof=price rsi bias"`
	Op              AlertOp     `json:"op" yaml:"op" validate:"oneof=lt gt"`
	Threshold       float64     `json:"threshold" yaml:"threshold"`
	CooldownHours   int         `json:"cooldown_hours" yaml:"cooldown_hours" validate:"min=0"`
	IsActive        bool        `json:"is_active" yaml:"is_active"`
	LastTriggeredAt *time.Time  `json:"last_triggered_at,omitempty" yaml:"-"`
}

// Matches reports whether the rule fires for the given metric value.
func (r AlertRule) Matches(value float64) bool {
	switch r.Op {
	case OpLessThan:
		return value < r.Threshold
	case OpGreaterThan:
		return value > r.Threshold
	}
	return false
}

// Describe renders the rule condition, e.g. "rsi < 30.00".
func (r AlertRule) Describe() string {
	op := "<"
	if r.Op == OpGreaterThan {
		op = ">"
	}
	return fmt.Sprintf("%s %s %.2f", r.Metric, op, r.Threshold)
}

// FiredAlert describes one notification the dispatcher actually sent.
type FiredAlert struct {
	WatchID int64         `json:"watch_id"`
	Pair    string        `json:"pair"`
	Verdict TimingVerdict `json:"verdict"`
	SentAt  time.Time     `json:"sent_at"`
}

// CycleReport summarizes one alert cycle over the active watches.
type CycleReport struct {
	CycleID        string       `json:"cycle_id"`
	TotalEvaluated int          `json:"total_evaluated"`
	Triggered      int          `json:"triggered"`
	Fired          int          `json:"fired"`
	Suppressed     int          `json:"suppressed"`
	Errors         int          `json:"errors"`
	FiredAlerts    []FiredAlert `json:"fired_alerts,omitempty"`
}

// ScanReport summarizes one scan cycle over the active instruments.
type ScanReport struct {
	CycleID      string              `json:"cycle_id"`
	Evaluated    int                 `json:"evaluated"`
	FetchErrors  int                 `json:"fetch_errors"`
	Signals      map[SignalState]int `json:"signals"`
	Sentiment    MarketSentiment     `json:"sentiment"`
	BreadthRatio float64             `json:"breadth_ratio"`
	Transitions  int                 `json:"transitions"`
	RulesFired   int                 `json:"rules_fired"`
	Duration     time.Duration       `json:"duration"`
}
