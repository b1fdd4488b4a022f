package strategy

import (
	"fmt"

	"github.com/azusa152/Folio/internal/model"
)

// Config holds the classification thresholds shared by all categories.
type Config struct {
	RSIOversold    float64
	RSIOverbought  float64
	BiasOverheated float64
	CautionBreadth float64
}

// Validate rejects threshold combinations that would make classification
// meaningless. Runs once at startup, never mid-cycle.
func (c Config) Validate() error {
	if c.RSIOversold <= 0 || c.RSIOversold >= 100 {
		return fmt.Errorf("rsi_oversold must be in (0, 100), got %v", c.RSIOversold)
	}
	if c.RSIOverbought <= c.RSIOversold || c.RSIOverbought > 100 {
		return fmt.Errorf("rsi_overbought must be in (rsi_oversold, 100], got %v", c.RSIOverbought)
	}
	if c.BiasOverheated <= 0 {
		return fmt.Errorf("bias_overheated must be positive, got %v", c.BiasOverheated)
	}
	if c.CautionBreadth < 0 || c.CautionBreadth > 1 {
		return fmt.Errorf("caution_breadth must be in [0, 1], got %v", c.CautionBreadth)
	}
	return nil
}

// Classifier maps an instrument's category plus its indicator snapshot (and
// margin trend, for fundamentals-driven categories) to a discrete signal.
type Classifier struct {
	cfg Config
}

// New builds a Classifier, rejecting invalid thresholds up front.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("strategy config: %w", err)
	}
	return &Classifier{cfg: cfg}, nil
}

// Evaluate classifies one instrument. The category selects which checks run
// and which states are reachable; the injected market sentiment may suppress
// a contrarian buy or escalate to OVERHEATED, but never touches a broken
// thesis. Missing indicators are reported in the notes and never count
// toward a negative determination.
func (c *Classifier) Evaluate(inst model.Instrument, snap model.IndicatorSnapshot, margin *model.MarginComparison, sentiment model.MarketSentiment) model.ScanResult {
	var (
		signal model.SignalState
		notes  []string
	)
	switch inst.Category {
	case model.CategoryTrendSetter:
		signal, notes = c.trendSetterSignal(snap.Price, snap.RSI, snap.MALong)
	case model.CategoryMoat:
		signal, notes = moatSignal(margin)
	case model.CategoryGrowth:
		signal, notes = growthSignal(snap.Price, snap.MAShort)
	default:
		signal = model.SignalNormal
		notes = []string{fmt.Sprintf("no checks for category %s", inst.Category)}
	}

	signal, notes = c.applyGate(inst.Category, signal, snap, sentiment, notes)

	return model.ScanResult{
		Ticker:    inst.Ticker,
		Category:  inst.Category,
		Signal:    signal,
		Sentiment: sentiment,
		Notes:     notes,
		Snapshot:  snap,
		Margin:    margin,
	}
}

// trendSetterSignal needs the price, the RSI, and the long moving average.
// A broken thesis (price under the long MA) outranks a contrarian buy when
// both fire.
func (c *Classifier) trendSetterSignal(price float64, rsi, maLong *float64) (model.SignalState, []string) {
	var notes []string
	broken := false
	contrarian := false

	if maLong == nil {
		notes = append(notes, "insufficient data: long MA")
	} else if price < *maLong {
		broken = true
		notes = append(notes, fmt.Sprintf("price %.2f below long MA %.2f", price, *maLong))
	}

	if rsi == nil {
		notes = append(notes, "insufficient data: rsi")
	} else if *rsi < c.cfg.RSIOversold {
		contrarian = true
		notes = append(notes, fmt.Sprintf("rsi %.2f below oversold floor %.2f", *rsi, c.cfg.RSIOversold))
	}

	switch {
	case broken:
		return model.SignalThesisBroken, notes
	case contrarian:
		return model.SignalContrarianBuy, notes
	}
	return model.SignalNormal, notes
}

// moatSignal needs only the margin comparison.
func moatSignal(margin *model.MarginComparison) (model.SignalState, []string) {
	if margin == nil || margin.Status == model.MoatUnavailable {
		return model.SignalNormal, []string{"insufficient data: margin trend"}
	}
	if margin.Status == model.MoatDeteriorating {
		return model.SignalThesisBroken, []string{margin.Detail}
	}
	return model.SignalNormal, []string{margin.Detail}
}

// growthSignal needs the price and the short moving average.
func growthSignal(price float64, maShort *float64) (model.SignalState, []string) {
	if maShort == nil {
		return model.SignalNormal, []string{"insufficient data: short MA"}
	}
	if price < *maShort {
		return model.SignalThesisBroken, []string{fmt.Sprintf("price %.2f below short MA %.2f", price, *maShort)}
	}
	return model.SignalNormal, nil
}

// applyGate applies the market-wide sentiment to the base classification.
// Under CAUTION a contrarian buy is suppressed; under POSITIVE an otherwise
// normal result with overbought RSI and an overheated bias escalates.
func (c *Classifier) applyGate(cat model.Category, signal model.SignalState, snap model.IndicatorSnapshot, sentiment model.MarketSentiment, notes []string) (model.SignalState, []string) {
	switch {
	case signal == model.SignalContrarianBuy && sentiment == model.SentimentCaution:
		notes = append(notes, "contrarian buy suppressed: market breadth in caution")
		return model.SignalNormal, notes
	case signal == model.SignalNormal && sentiment == model.SentimentPositive && cat.HasTechnicalChecks() &&
		snap.RSI != nil && *snap.RSI >= c.cfg.RSIOverbought &&
		snap.Bias != nil && *snap.Bias >= c.cfg.BiasOverheated:
		notes = append(notes, fmt.Sprintf("rsi %.2f and bias %.1f%% overheated", *snap.RSI, *snap.Bias))
		return model.SignalOverheated, notes
	}
	return signal, notes
}
