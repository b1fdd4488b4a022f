package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/azusa152/Folio/internal/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func countRows(t *testing.T, r *SQLiteRecorder, table string) int {
	t.Helper()
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestRecordScan(t *testing.T) {
	r := openTestRecorder(t)
	rsi := 25.0
	err := r.RecordScan(context.Background(), "cycle-1", model.ScanResult{
		Ticker: "NVDA", Category: model.CategoryTrendSetter,
		Signal: model.SignalContrarianBuy, Sentiment: model.SentimentPositive,
		Notes:    []string{"rsi 25.00 below oversold floor 30.00"},
		Snapshot: model.IndicatorSnapshot{Ticker: "NVDA", Price: 100, RSI: &rsi},
	})
	if err != nil {
		t.Fatalf("record scan: %v", err)
	}
	if countRows(t, r, "scan_logs") != 1 {
		t.Error("expected one scan log row")
	}
}

func TestRecordTimingAndFired(t *testing.T) {
	r := openTestRecorder(t)
	v := model.TimingVerdict{
		Base: "USD", Quote: "JPY", CurrentRate: 32, LookbackHigh: 32,
		LookbackDays: 30, ConsecutiveIncreases: 4, IsRecentHigh: true,
		ShouldAlert: true, Recommendation: "consider converting now",
	}
	if err := r.RecordTiming(context.Background(), "cycle-1", v); err != nil {
		t.Fatalf("record timing: %v", err)
	}
	fired := model.FiredAlert{
		WatchID: 7, Pair: "USD/JPY", Verdict: v,
		SentAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := r.RecordFired(context.Background(), "cycle-1", fired); err != nil {
		t.Fatalf("record fired: %v", err)
	}
	if countRows(t, r, "timing_logs") != 1 || countRows(t, r, "fired_alerts") != 1 {
		t.Error("expected one row in each audit table")
	}
}

func TestNoopRecorder(t *testing.T) {
	n := Noop{}
	if err := n.RecordScan(context.Background(), "c", model.ScanResult{}); err != nil {
		t.Errorf("noop must not fail: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Errorf("noop close: %v", err)
	}
}
