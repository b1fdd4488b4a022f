package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chartJSON(timestamps []int64, closes []string) string {
	ts := make([]string, len(timestamps))
	for i, t := range timestamps {
		ts[i] = fmt.Sprintf("%d", t)
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`,
		strings.Join(ts, ","), strings.Join(closes, ","))
}

func newYahooTestServer(t *testing.T, handler http.HandlerFunc) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	return f
}

func TestYahooPriceHistory(t *testing.T) {
	f := newYahooTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v8/finance/chart/NVDA") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		// Middle bar is a null close (holiday) and must be skipped.
		fmt.Fprint(w, chartJSON([]int64{1700000000, 1700086400, 1700172800}, []string{"30.5", "null", "31.0"}))
	})

	series, err := f.PriceHistory(context.Background(), "NVDA", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 points after null-bar skip, got %d", len(series))
	}
	if series[0].Close != 30.5 || series[1].Close != 31.0 {
		t.Errorf("unexpected closes: %+v", series)
	}
	if !series[0].Time.Before(series[1].Time) {
		t.Error("series must be ascending by time")
	}
}

func TestYahooPriceHistoryTrimsToRequestedDays(t *testing.T) {
	f := newYahooTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chartJSON(
			[]int64{1700000000, 1700086400, 1700172800, 1700259200},
			[]string{"1", "2", "3", "4"}))
	})
	series, err := f.PriceHistory(context.Background(), "NVDA", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 || series[0].Close != 3 || series[1].Close != 4 {
		t.Errorf("expected the last 2 closes, got %+v", series)
	}
}

func TestYahooEmptyChartIsNoData(t *testing.T) {
	f := newYahooTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
	})
	_, err := f.PriceHistory(context.Background(), "VOID", 10)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestYahooTransportErrorIsNotNoData(t *testing.T) {
	f := newYahooTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := f.PriceHistory(context.Background(), "NVDA", 10)
	if err == nil || errors.Is(err, ErrNoData) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func quarter(profit, revenue float64) string {
	return fmt.Sprintf(`{"grossProfit":{"raw":%g},"totalRevenue":{"raw":%g}}`, profit, revenue)
}

func TestYahooFundamentals(t *testing.T) {
	quarters := []string{
		quarter(55, 100), // current
		quarter(54, 100),
		quarter(53, 100),
		quarter(52, 100),
		quarter(60, 100), // year ago
	}
	f := newYahooTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v10/finance/quoteSummary/KO") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprintf(w, `{"quoteSummary":{"result":[{"incomeStatementHistoryQuarterly":{"incomeStatementHistory":[%s]}}],"error":null}}`,
			strings.Join(quarters, ","))
	})

	current, previous, err := f.Fundamentals(context.Background(), "KO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current == nil || *current != 55.0 {
		t.Errorf("expected current margin 55.0, got %v", current)
	}
	if previous == nil || *previous != 60.0 {
		t.Errorf("expected previous margin 60.0, got %v", previous)
	}
}

func TestYahooFundamentalsTooFewQuarters(t *testing.T) {
	f := newYahooTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"quoteSummary":{"result":[{"incomeStatementHistoryQuarterly":{"incomeStatementHistory":[%s,%s]}}],"error":null}}`,
			quarter(55, 100), quarter(54, 100))
	})
	current, previous, err := f.Fundamentals(context.Background(), "KO")
	if err != nil {
		t.Fatalf("missing quarters must not be an error, got %v", err)
	}
	if current != nil || previous != nil {
		t.Errorf("expected nil margins, got %v / %v", current, previous)
	}
}

func TestFXSymbol(t *testing.T) {
	if got := FXSymbol("USD", "JPY"); got != "USDJPY=X" {
		t.Errorf("expected USDJPY=X, got %s", got)
	}
}
