// Package engine owns the scan and alert cycles end to end: fetch
// indicators, classify signals, gate alerts through the dispatcher, and
// report. Cycles are synchronous; any concurrency wrapper around them is the
// scheduler's concern.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azusa152/Folio/internal/collector"
	"github.com/azusa152/Folio/internal/dispatch"
	"github.com/azusa152/Folio/internal/fx"
	"github.com/azusa152/Folio/internal/metrics"
	"github.com/azusa152/Folio/internal/model"
	"github.com/azusa152/Folio/internal/notifier"
	"github.com/azusa152/Folio/internal/recorder"
	"github.com/azusa152/Folio/internal/store"
	"github.com/azusa152/Folio/internal/strategy"
)

// Config tunes the engine's cycles.
type Config struct {
	// ScanConcurrency bounds the snapshot worker pool.
	ScanConcurrency int
	// FXHistoryDays is how much rate history a watch evaluation fetches.
	FXHistoryDays int
	// TolerancePct is the near-high band for timing verdicts.
	TolerancePct float64
	// CautionBreadth is the below-short-MA ratio that flips sentiment.
	CautionBreadth float64
	// Swings parameterizes the rate-change digest.
	Swings fx.SwingConfig
}

func (c Config) validate() error {
	if c.ScanConcurrency < 1 {
		return fmt.Errorf("scan concurrency must be at least 1, got %d", c.ScanConcurrency)
	}
	if c.FXHistoryDays < 2 {
		return fmt.Errorf("fx history days must be at least 2, got %d", c.FXHistoryDays)
	}
	return nil
}

// Engine is the core evaluation surface exposed to the scheduler and the
// bot command handler.
type Engine struct {
	cfg        Config
	store      store.Store
	collector  *collector.Collector
	classifier *strategy.Classifier
	dispatcher *dispatch.Dispatcher
	notifier   notifier.Notifier
	recorder   recorder.Recorder
	metrics    *metrics.Metrics
	log        zerolog.Logger

	mu         sync.Mutex
	lastScan   *model.ScanReport
	lastAlerts *model.CycleReport
	startedAt  time.Time
}

// New wires an engine, rejecting invalid tuning before any cycle can start.
func New(cfg Config, st store.Store, col *collector.Collector, cls *strategy.Classifier, d *dispatch.Dispatcher, n notifier.Notifier, rec recorder.Recorder, m *metrics.Metrics, log zerolog.Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{
		cfg:        cfg,
		store:      st,
		collector:  col,
		classifier: cls,
		dispatcher: d,
		notifier:   n,
		recorder:   rec,
		metrics:    m,
		log:        log.With().Str("component", "engine").Logger(),
		startedAt:  time.Now(),
	}, nil
}

// Evaluate classifies one instrument under the given market sentiment.
// Fundamentals are fetched only for categories that need them.
func (e *Engine) Evaluate(ctx context.Context, inst model.Instrument, sentiment model.MarketSentiment) (model.ScanResult, error) {
	snap, err := e.collector.Snapshot(ctx, inst.Ticker)
	if err != nil {
		return model.ScanResult{}, fmt.Errorf("snapshot %s: %w", inst.Ticker, err)
	}
	var margin *model.MarginComparison
	if inst.Category == model.CategoryMoat {
		m, err := e.collector.Margins(ctx, inst.Ticker)
		if err != nil {
			// Degrade to an unavailable comparison; the classifier reports
			// it as insufficient data rather than a broken thesis.
			e.log.Warn().Err(err).Str("ticker", inst.Ticker).Msg("margin fetch failed")
			e.metrics.FetchError()
		} else {
			margin = &m
		}
	}
	return e.classifier.Evaluate(inst, snap, margin, sentiment), nil
}

// CheckWatch produces a fresh timing verdict for one watch. No side effects.
func (e *Engine) CheckWatch(ctx context.Context, w model.Watch) (model.TimingVerdict, error) {
	days := e.cfg.FXHistoryDays
	if w.LookbackDays > days {
		days = w.LookbackDays
	}
	history, err := e.collector.RateHistory(ctx, w.Base, w.Quote, days)
	if err != nil {
		return model.TimingVerdict{}, fmt.Errorf("rate history %s: %w", w.Pair(), err)
	}
	return fx.AssessTiming(w.Base, w.Quote, history, fx.TimingConfig{
		LookbackDays:         w.LookbackDays,
		ConsecutiveThreshold: w.ConsecutiveThreshold,
		TolerancePct:         e.cfg.TolerancePct,
	}), nil
}

// ScanCycle evaluates every active instrument: snapshots first (bounded
// worker pool), then the breadth-derived sentiment, then per-category
// classification, custom rules, and transition notifications. One
// instrument's fetch failure degrades that instrument only.
func (e *Engine) ScanCycle(ctx context.Context) (model.ScanReport, error) {
	started := time.Now()
	report := model.ScanReport{
		CycleID: uuid.NewString(),
		Signals: make(map[model.SignalState]int),
	}

	instruments, err := e.store.ActiveInstruments(ctx)
	if err != nil {
		return report, fmt.Errorf("load instruments: %w", err)
	}

	snapshots := e.collectSnapshots(ctx, instruments, &report)

	sentiment, ratio := strategy.AssessBreadth(orderedSnapshots(instruments, snapshots), e.cfg.CautionBreadth)
	report.Sentiment = sentiment
	report.BreadthRatio = ratio
	e.metrics.Breadth(ratio)

	for _, inst := range instruments {
		snap, ok := snapshots[inst.Ticker]
		if !ok {
			continue // fetch failed, already counted
		}
		result := e.classifyOne(ctx, inst, snap, sentiment)
		report.Evaluated++
		report.Signals[result.Signal]++
		e.metrics.InstrumentScanned()
		e.metrics.Signal(string(result.Signal))

		if err := e.recorder.RecordScan(ctx, report.CycleID, result); err != nil {
			e.log.Warn().Err(err).Str("ticker", inst.Ticker).Msg("record scan result")
		}
		if result.Signal != inst.LastSignal {
			report.Transitions++
			e.notifyTransition(ctx, result, inst.LastSignal)
			if err := e.store.UpdateSignal(ctx, inst.Ticker, result.Signal); err != nil {
				e.log.Error().Err(err).Str("ticker", inst.Ticker).Msg("persist signal transition")
			}
		}
	}

	report.RulesFired = e.evaluateRules(ctx, snapshots)

	report.Duration = time.Since(started)
	e.metrics.ScanCycle(report.Duration)
	e.log.Info().Str("cycle_id", report.CycleID).
		Int("evaluated", report.Evaluated).
		Int("fetch_errors", report.FetchErrors).
		Str("sentiment", string(sentiment)).
		Float64("breadth", ratio).
		Int("transitions", report.Transitions).
		Int("rules_fired", report.RulesFired).
		Dur("duration", report.Duration).
		Msg("scan cycle complete")

	e.mu.Lock()
	e.lastScan = &report
	e.mu.Unlock()
	return report, nil
}

// collectSnapshots fetches every instrument's snapshot with bounded
// concurrency. A failed fetch is logged and counted, never fatal.
func (e *Engine) collectSnapshots(ctx context.Context, instruments []model.Instrument, report *model.ScanReport) map[string]model.IndicatorSnapshot {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.cfg.ScanConcurrency)
	)
	snapshots := make(map[string]model.IndicatorSnapshot, len(instruments))
	for _, inst := range instruments {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			snap, err := e.collector.Snapshot(ctx, ticker)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.FetchErrors++
				e.metrics.FetchError()
				e.log.Warn().Err(err).Str("ticker", ticker).Msg("snapshot failed, skipping instrument")
				return
			}
			snapshots[ticker] = snap
		}(inst.Ticker)
	}
	wg.Wait()
	return snapshots
}

func (e *Engine) classifyOne(ctx context.Context, inst model.Instrument, snap model.IndicatorSnapshot, sentiment model.MarketSentiment) model.ScanResult {
	var margin *model.MarginComparison
	if inst.Category == model.CategoryMoat {
		m, err := e.collector.Margins(ctx, inst.Ticker)
		if err != nil {
			e.log.Warn().Err(err).Str("ticker", inst.Ticker).Msg("margin fetch failed")
			e.metrics.FetchError()
		} else {
			margin = &m
		}
	}
	return e.classifier.Evaluate(inst, snap, margin, sentiment)
}

func (e *Engine) notifyTransition(ctx context.Context, result model.ScanResult, previous model.SignalState) {
	text := notifier.FormatSignalTransition(result, previous)
	if err := e.notifier.Send(ctx, text); err != nil {
		e.log.Error().Err(err).Str("ticker", result.Ticker).Msg("transition notification failed")
		e.metrics.NotifyError()
	}
}

// evaluateRules checks every active custom rule against this cycle's
// snapshots, firing matches through the cooldown gate.
func (e *Engine) evaluateRules(ctx context.Context, snapshots map[string]model.IndicatorSnapshot) int {
	rules, err := e.store.ActiveRules(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("load alert rules")
		return 0
	}
	fired := 0
	for _, rule := range rules {
		snap, ok := snapshots[rule.Ticker]
		if !ok {
			continue
		}
		value, ok := metricValue(rule.Metric, snap)
		if !ok {
			continue // insufficient data never triggers a rule
		}
		if !rule.Matches(value) {
			continue
		}
		outcome, err := e.dispatcher.FireRule(ctx, rule, notifier.FormatRuleTrigger(rule, value))
		if err != nil {
			e.log.Error().Err(err).Int64("rule_id", rule.ID).Msg("rule notification failed")
			continue
		}
		if outcome == dispatch.OutcomeFired {
			fired++
		}
	}
	return fired
}

func metricValue(metric model.AlertMetric, snap model.IndicatorSnapshot) (float64, bool) {
	switch metric {
	case model.MetricPrice:
		return snap.Price, true
	case model.MetricRSI:
		if snap.RSI != nil {
			return *snap.RSI, true
		}
	case model.MetricBias:
		if snap.Bias != nil {
			return *snap.Bias, true
		}
	}
	return 0, false
}

// AlertCycle evaluates the active watches and dispatches the alerts whose
// cooldown has elapsed.
func (e *Engine) AlertCycle(ctx context.Context) (model.CycleReport, error) {
	watches, err := e.store.ActiveWatches(ctx)
	if err != nil {
		return model.CycleReport{}, fmt.Errorf("load watches: %w", err)
	}
	report := e.dispatcher.RunAlertCycle(ctx, watches, e.CheckWatch)

	e.mu.Lock()
	e.lastAlerts = &report
	e.mu.Unlock()
	return report, nil
}

// FXSummary renders the swing digest over every active watch pair.
func (e *Engine) FXSummary(ctx context.Context) (string, error) {
	watches, err := e.store.ActiveWatches(ctx)
	if err != nil {
		return "", fmt.Errorf("load watches: %w", err)
	}
	var entries []notifier.SummaryEntry
	for _, w := range watches {
		history, err := e.collector.RateHistory(ctx, w.Base, w.Quote, e.cfg.Swings.LongWindowDays)
		if err != nil {
			e.log.Warn().Err(err).Str("pair", w.Pair()).Msg("rate history for digest failed")
			e.metrics.FetchError()
			continue
		}
		rate, ok := history.Last()
		if !ok {
			continue
		}
		alerts := fx.AnalyzeRateChanges(w.Base, w.Quote, history, e.cfg.Swings)
		entries = append(entries, notifier.SummaryEntry{
			Pair:   w.Pair(),
			Rate:   rate,
			Risk:   fx.RiskFor(alerts),
			Alerts: alerts,
		})
	}
	if len(entries) == 0 {
		return "", nil
	}
	return notifier.FormatFXSummary(entries), nil
}

// Status summarizes the engine for the /status bot command.
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := fmt.Sprintf("Uptime: %s", time.Since(e.startedAt).Round(time.Second))
	if e.lastScan != nil {
		s += fmt.Sprintf("\nLast scan: %d evaluated, %d transitions, sentiment %s",
			e.lastScan.Evaluated, e.lastScan.Transitions, e.lastScan.Sentiment)
	}
	if e.lastAlerts != nil {
		s += fmt.Sprintf("\nLast alert cycle: %d evaluated, %d fired, %d suppressed",
			e.lastAlerts.TotalEvaluated, e.lastAlerts.Fired, e.lastAlerts.Suppressed)
	}
	return s
}

// Watches returns fresh verdicts for every active watch, for the /watches
// command. Evaluation only; no cooldown state is touched.
func (e *Engine) Watches(ctx context.Context) ([]model.TimingVerdict, error) {
	watches, err := e.store.ActiveWatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("load watches: %w", err)
	}
	verdicts := make([]model.TimingVerdict, 0, len(watches))
	for _, w := range watches {
		v, err := e.CheckWatch(ctx, w)
		if err != nil {
			e.log.Warn().Err(err).Str("pair", w.Pair()).Msg("check watch failed")
			continue
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

// orderedSnapshots projects the snapshot map back into instrument order so
// breadth assessment is deterministic.
func orderedSnapshots(instruments []model.Instrument, snapshots map[string]model.IndicatorSnapshot) []model.IndicatorSnapshot {
	out := make([]model.IndicatorSnapshot, 0, len(snapshots))
	for _, inst := range instruments {
		if snap, ok := snapshots[inst.Ticker]; ok {
			out = append(out, snap)
		}
	}
	return out
}
