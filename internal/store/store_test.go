package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/azusa152/Folio/internal/model"
)

// implementations runs each test against both the memory and SQLite stores.
func implementations(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "radar.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestWatchRoundTrip(t *testing.T) {
	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := st.UpsertWatch(ctx, model.Watch{
				Base: "USD", Quote: "JPY",
				LookbackDays: 30, ConsecutiveThreshold: 3, CooldownHours: 24,
				IsActive: true,
			})
			if err != nil {
				t.Fatalf("upsert: %v", err)
			}

			w, err := st.GetWatch(ctx, id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if w.Pair() != "USD/JPY" || w.LookbackDays != 30 || w.LastAlertedAt != nil {
				t.Errorf("unexpected watch: %+v", w)
			}

			active, err := st.ActiveWatches(ctx)
			if err != nil || len(active) != 1 {
				t.Fatalf("expected 1 active watch, got %d (err %v)", len(active), err)
			}

			at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			if err := st.MarkAlerted(ctx, id, at); err != nil {
				t.Fatalf("mark alerted: %v", err)
			}
			w, _ = st.GetWatch(ctx, id)
			if w.LastAlertedAt == nil || !w.LastAlertedAt.Equal(at) {
				t.Errorf("expected last_alerted_at %v, got %v", at, w.LastAlertedAt)
			}
		})
	}
}

func TestMarkAlertedUnknownID(t *testing.T) {
	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			err := st.MarkAlerted(context.Background(), 9999, time.Now())
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestInstrumentSignalTransition(t *testing.T) {
	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inst := model.Instrument{
				Ticker: "NVDA", Category: model.CategoryTrendSetter,
				Thesis: "datacenter capex", Tags: []string{"ai", "semis"},
				IsActive: true, LastSignal: model.SignalNormal,
			}
			if err := st.UpsertInstrument(ctx, inst); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			if err := st.UpdateSignal(ctx, "NVDA", model.SignalThesisBroken); err != nil {
				t.Fatalf("update signal: %v", err)
			}

			active, err := st.ActiveInstruments(ctx)
			if err != nil || len(active) != 1 {
				t.Fatalf("expected 1 instrument, got %d (err %v)", len(active), err)
			}
			got := active[0]
			if got.LastSignal != model.SignalThesisBroken {
				t.Errorf("expected THESIS_BROKEN, got %s", got.LastSignal)
			}
			if len(got.Tags) != 2 || got.Tags[0] != "ai" {
				t.Errorf("tags did not round-trip: %+v", got.Tags)
			}
		})
	}
}

func TestInactiveEntriesExcluded(t *testing.T) {
	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := st.UpsertInstrument(ctx, model.Instrument{
				Ticker: "GONE", Category: model.CategoryGrowth, IsActive: false,
			}); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			active, err := st.ActiveInstruments(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			for _, inst := range active {
				if inst.Ticker == "GONE" {
					t.Error("inactive instrument leaked into active list")
				}
			}
		})
	}
}

func TestRuleRoundTrip(t *testing.T) {
	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := st.UpsertRule(ctx, model.AlertRule{
				Ticker: "NVDA", Metric: model.MetricRSI, Op: model.OpLessThan,
				Threshold: 30, CooldownHours: 12, IsActive: true,
			})
			if err != nil {
				t.Fatalf("upsert: %v", err)
			}

			at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
			if err := st.MarkTriggered(ctx, id, at); err != nil {
				t.Fatalf("mark triggered: %v", err)
			}
			rules, err := st.ActiveRules(ctx)
			if err != nil || len(rules) != 1 {
				t.Fatalf("expected 1 rule, got %d (err %v)", len(rules), err)
			}
			if rules[0].LastTriggeredAt == nil || !rules[0].LastTriggeredAt.Equal(at) {
				t.Errorf("expected last_triggered_at %v, got %v", at, rules[0].LastTriggeredAt)
			}

			r, err := st.GetRule(ctx, id)
			if err != nil {
				t.Fatalf("get rule: %v", err)
			}
			if r.Ticker != "NVDA" || r.LastTriggeredAt == nil || !r.LastTriggeredAt.Equal(at) {
				t.Errorf("unexpected rule from GetRule: %+v", r)
			}
			if _, err := st.GetRule(ctx, 9999); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound for unknown rule id, got %v", err)
			}
		})
	}
}

func TestUpsertWatchUpdatesExistingPair(t *testing.T) {
	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, err := st.UpsertWatch(ctx, model.Watch{
				Base: "USD", Quote: "JPY", LookbackDays: 30,
				ConsecutiveThreshold: 3, CooldownHours: 24, IsActive: true,
			})
			if err != nil {
				t.Fatalf("first upsert: %v", err)
			}
			at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			if err := st.MarkAlerted(ctx, first, at); err != nil {
				t.Fatalf("mark alerted: %v", err)
			}

			second, err := st.UpsertWatch(ctx, model.Watch{
				Base: "USD", Quote: "JPY", LookbackDays: 60,
				ConsecutiveThreshold: 5, CooldownHours: 24, IsActive: true,
			})
			if err != nil {
				t.Fatalf("second upsert: %v", err)
			}
			if first != second {
				t.Errorf("same pair must keep its id: %d vs %d", first, second)
			}
			active, err := st.ActiveWatches(ctx)
			if err != nil || len(active) != 1 {
				t.Fatalf("expected 1 active watch after re-upsert, got %d (err %v)", len(active), err)
			}
			w, _ := st.GetWatch(ctx, first)
			if w.LookbackDays != 60 || w.ConsecutiveThreshold != 5 {
				t.Errorf("upsert did not update fields: %+v", w)
			}
			if w.LastAlertedAt == nil || !w.LastAlertedAt.Equal(at) {
				t.Errorf("re-upsert must keep cooldown state, got %v", w.LastAlertedAt)
			}
		})
	}
}
