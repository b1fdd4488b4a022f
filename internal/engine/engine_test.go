package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/azusa152/Folio/internal/cache"
	"github.com/azusa152/Folio/internal/collector"
	"github.com/azusa152/Folio/internal/dispatch"
	"github.com/azusa152/Folio/internal/fx"
	"github.com/azusa152/Folio/internal/model"
	"github.com/azusa152/Folio/internal/recorder"
	"github.com/azusa152/Folio/internal/store"
	"github.com/azusa152/Folio/internal/strategy"
)

type countingNotifier struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (n *countingNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("channel down")
	}
	n.sent = append(n.sent, text)
	return nil
}

func (n *countingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

type harness struct {
	engine   *Engine
	store    *store.Memory
	fetcher  *collector.MockFetcher
	notifier *countingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := store.NewMemory()
	mock := collector.NewMockFetcher()
	n := &countingNotifier{}

	caches := collector.Caches{
		Snapshots: cache.New[model.IndicatorSnapshot]("snapshots", 50, time.Minute),
		Margins:   cache.New[model.MarginComparison]("margins", 50, time.Minute),
		History:   cache.New[model.PriceSeries]("history", 50, time.Minute),
	}
	col := collector.New(mock, collector.IndicatorParams{
		RSIPeriod:   14,
		LongMA:      200,
		ShortMA:     60,
		MinHistory:  60,
		HistoryDays: 365,
	}, time.Second, caches, zerolog.Nop(), nil)

	classifier, err := strategy.New(strategy.Config{
		RSIOversold:    30,
		RSIOverbought:  70,
		BiasOverheated: 20,
		CautionBreadth: 0.5,
	})
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	disp := dispatch.New(st, st, n, recorder.Noop{}, nil, zerolog.Nop())

	eng, err := New(Config{
		ScanConcurrency: 2,
		FXHistoryDays:   30,
		TolerancePct:    2.0,
		CautionBreadth:  0.5,
		Swings: fx.SwingConfig{
			DailySpikePct:   1.0,
			SwingPct:        3.0,
			TrendPct:        5.0,
			ShortWindowDays: 7,
			LongWindowDays:  30,
		},
	}, st, col, classifier, disp, n, recorder.Noop{}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return &harness{engine: eng, store: st, fetcher: mock, notifier: n}
}

func risingSeries(n int, start, step float64) model.PriceSeries {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(model.PriceSeries, n)
	for i := range s {
		s[i] = model.PricePoint{Time: first.AddDate(0, 0, i), Close: start + step*float64(i)}
	}
	return s
}

func fallingSeries(n int, start, step float64) model.PriceSeries {
	return risingSeries(n, start, -step)
}

func TestScanCycleEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// One gentle riser (no overheat) and one faller under its short MA.
	h.fetcher.SetHistory("UP", risingSeries(250, 100, 0.1))
	h.fetcher.SetHistory("DOWN", fallingSeries(250, 200, 0.4))
	h.store.UpsertInstrument(ctx, model.Instrument{
		Ticker: "UP", Category: model.CategoryTrendSetter, IsActive: true, LastSignal: model.SignalNormal,
	})
	h.store.UpsertInstrument(ctx, model.Instrument{
		Ticker: "DOWN", Category: model.CategoryGrowth, IsActive: true, LastSignal: model.SignalNormal,
	})

	report, err := h.engine.ScanCycle(ctx)
	if err != nil {
		t.Fatalf("scan cycle: %v", err)
	}
	if report.Evaluated != 2 || report.FetchErrors != 0 {
		t.Fatalf("expected 2 evaluated / 0 errors, got %d/%d", report.Evaluated, report.FetchErrors)
	}
	if report.Signals[model.SignalThesisBroken] != 1 {
		t.Errorf("expected 1 THESIS_BROKEN, got %+v", report.Signals)
	}
	if report.Transitions != 1 {
		t.Errorf("expected 1 transition, got %d", report.Transitions)
	}

	// The transition is persisted and notified.
	instruments, _ := h.store.ActiveInstruments(ctx)
	for _, inst := range instruments {
		if inst.Ticker == "DOWN" && inst.LastSignal != model.SignalThesisBroken {
			t.Errorf("expected DOWN persisted as THESIS_BROKEN, got %s", inst.LastSignal)
		}
	}
	msgs := h.notifier.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "DOWN") {
		t.Errorf("expected one transition notification for DOWN, got %v", msgs)
	}

	// A second cycle has no transitions and stays quiet.
	report, err = h.engine.ScanCycle(ctx)
	if err != nil {
		t.Fatalf("second scan cycle: %v", err)
	}
	if report.Transitions != 0 {
		t.Errorf("expected no transitions on repeat, got %d", report.Transitions)
	}
	if len(h.notifier.messages()) != 1 {
		t.Errorf("repeat cycle must not re-notify, got %v", h.notifier.messages())
	}
}

func TestScanCycleFetchErrorDegradesOneInstrument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.fetcher.SetHistory("OK", risingSeries(250, 100, 0.5))
	h.fetcher.FailWith("BAD", errors.New("upstream timeout"))
	h.store.UpsertInstrument(ctx, model.Instrument{
		Ticker: "OK", Category: model.CategoryTrendSetter, IsActive: true, LastSignal: model.SignalNormal,
	})
	h.store.UpsertInstrument(ctx, model.Instrument{
		Ticker: "BAD", Category: model.CategoryGrowth, IsActive: true, LastSignal: model.SignalNormal,
	})

	report, err := h.engine.ScanCycle(ctx)
	if err != nil {
		t.Fatalf("scan cycle must survive one bad instrument: %v", err)
	}
	if report.Evaluated != 1 || report.FetchErrors != 1 {
		t.Errorf("expected 1 evaluated / 1 fetch error, got %d/%d", report.Evaluated, report.FetchErrors)
	}
}

func TestScanCycleMoatUsesFundamentals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cur, prev := 52.0, 55.0
	h.fetcher.SetHistory("KO", risingSeries(250, 60, 0.1))
	h.fetcher.SetMargins("KO", &cur, &prev)
	h.store.UpsertInstrument(ctx, model.Instrument{
		Ticker: "KO", Category: model.CategoryMoat, IsActive: true, LastSignal: model.SignalNormal,
	})

	report, err := h.engine.ScanCycle(ctx)
	if err != nil {
		t.Fatalf("scan cycle: %v", err)
	}
	if report.Signals[model.SignalThesisBroken] != 1 {
		t.Errorf("deteriorating margins must break the thesis, got %+v", report.Signals)
	}
}

func TestScanCycleFiresMatchingRule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.fetcher.SetHistory("UP", risingSeries(250, 100, 0.5))
	h.store.UpsertInstrument(ctx, model.Instrument{
		Ticker: "UP", Category: model.CategoryTrendSetter, IsActive: true, LastSignal: model.SignalNormal,
	})
	h.store.UpsertRule(ctx, model.AlertRule{
		Ticker: "UP", Metric: model.MetricPrice, Op: model.OpGreaterThan,
		Threshold: 50, CooldownHours: 24, IsActive: true,
	})

	report, err := h.engine.ScanCycle(ctx)
	if err != nil {
		t.Fatalf("scan cycle: %v", err)
	}
	if report.RulesFired != 1 {
		t.Errorf("expected 1 rule fired, got %d", report.RulesFired)
	}

	// Second cycle: rule is inside its cooldown now.
	report, _ = h.engine.ScanCycle(ctx)
	if report.RulesFired != 0 {
		t.Errorf("expected rule suppressed by cooldown, got %d", report.RulesFired)
	}
}

func TestCheckWatchTimingScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	history := model.PriceSeries{}
	for i, c := range []float64{30.0, 30.5, 31.0, 31.5, 32.0} {
		history = append(history, model.PricePoint{
			Time:  time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Close: c,
		})
	}
	h.fetcher.SetHistory("USDJPY=X", history)

	w := model.Watch{
		Base: "USD", Quote: "JPY",
		LookbackDays: 30, ConsecutiveThreshold: 3, CooldownHours: 24, IsActive: true,
	}
	v, err := h.engine.CheckWatch(ctx, w)
	if err != nil {
		t.Fatalf("check watch: %v", err)
	}
	if !v.IsRecentHigh || v.LookbackHigh != 32.0 || v.ConsecutiveIncreases != 4 || !v.ShouldAlert {
		t.Errorf("unexpected verdict: %+v", v)
	}
}

func TestAlertCycleEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	history := model.PriceSeries{}
	for i, c := range []float64{30.0, 30.5, 31.0, 31.5, 32.0} {
		history = append(history, model.PricePoint{
			Time:  time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Close: c,
		})
	}
	h.fetcher.SetHistory("USDJPY=X", history)
	h.store.UpsertWatch(ctx, model.Watch{
		Base: "USD", Quote: "JPY",
		LookbackDays: 30, ConsecutiveThreshold: 3, CooldownHours: 24, IsActive: true,
	})

	report, err := h.engine.AlertCycle(ctx)
	if err != nil {
		t.Fatalf("alert cycle: %v", err)
	}
	if report.TotalEvaluated != 1 || report.Fired != 1 {
		t.Fatalf("expected 1 evaluated / 1 fired, got %d/%d", report.TotalEvaluated, report.Fired)
	}
	msgs := h.notifier.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "USD/JPY") {
		t.Errorf("expected one USD/JPY alert, got %v", msgs)
	}

	// Immediately re-running the cycle suppresses the same candidate.
	report, err = h.engine.AlertCycle(ctx)
	if err != nil {
		t.Fatalf("second alert cycle: %v", err)
	}
	if report.Fired != 0 || report.Suppressed != 1 {
		t.Errorf("expected suppression on repeat, got fired=%d suppressed=%d", report.Fired, report.Suppressed)
	}
}

func TestFXSummaryDigest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A 10% rise over the window trips the long-trend threshold.
	h.fetcher.SetHistory("USDJPY=X", risingSeries(30, 100, 0.35))
	h.store.UpsertWatch(ctx, model.Watch{
		Base: "USD", Quote: "JPY",
		LookbackDays: 30, ConsecutiveThreshold: 3, CooldownHours: 24, IsActive: true,
	})

	digest, err := h.engine.FXSummary(ctx)
	if err != nil {
		t.Fatalf("fx summary: %v", err)
	}
	if !strings.Contains(digest, "USD/JPY") {
		t.Errorf("digest missing pair: %q", digest)
	}
	if !strings.Contains(digest, "long_trend") {
		t.Errorf("digest missing trend alert: %q", digest)
	}
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	h := newHarness(t)
	_, err := New(Config{ScanConcurrency: 0, FXHistoryDays: 30}, h.store, nil, nil, nil, nil, recorder.Noop{}, nil, zerolog.Nop())
	if err == nil {
		t.Error("expected config rejection for zero concurrency")
	}
}
