package collector

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/azusa152/Folio/internal/model"
)

// MockFetcher serves deterministic synthetic data, for tests and
// `provider: mock` dry runs. Per-symbol overrides and failure injection are
// safe for concurrent use.
type MockFetcher struct {
	mu sync.Mutex
	// Histories overrides the synthetic series per symbol.
	Histories map[string]model.PriceSeries
	// Margins overrides fundamentals per symbol.
	Margins map[string][2]*float64
	// Errs forces an error for a symbol's next fetch.
	Errs map[string]error

	historyCalls int
	fundCalls    int
}

// NewMockFetcher creates an empty mock; symbols without overrides get a
// gentle synthetic sine wave around 100.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Histories: make(map[string]model.PriceSeries),
		Margins:   make(map[string][2]*float64),
		Errs:      make(map[string]error),
	}
}

func (f *MockFetcher) Name() string { return "mock" }

// SetHistory replaces the series served for a symbol.
func (f *MockFetcher) SetHistory(symbol string, series model.PriceSeries) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Histories[symbol] = series
}

// SetMargins replaces the fundamentals served for a symbol.
func (f *MockFetcher) SetMargins(symbol string, current, previous *float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Margins[symbol] = [2]*float64{current, previous}
}

// FailWith makes every fetch for a symbol return err until cleared with nil.
func (f *MockFetcher) FailWith(symbol string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errs, symbol)
		return
	}
	f.Errs[symbol] = err
}

// HistoryCalls reports how many PriceHistory calls reached the mock, for
// cache-behavior assertions.
func (f *MockFetcher) HistoryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyCalls
}

func (f *MockFetcher) PriceHistory(_ context.Context, symbol string, days int) (model.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if err := f.Errs[symbol]; err != nil {
		return nil, err
	}
	if series, ok := f.Histories[symbol]; ok {
		return series.Tail(days), nil
	}
	return syntheticSeries(symbol, days), nil
}

func (f *MockFetcher) Quote(ctx context.Context, symbol string) (float64, error) {
	series, err := f.PriceHistory(ctx, symbol, 5)
	if err != nil {
		return 0, err
	}
	price, ok := series.Last()
	if !ok {
		return 0, ErrNoData
	}
	return price, nil
}

func (f *MockFetcher) Fundamentals(_ context.Context, symbol string) (*float64, *float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fundCalls++
	if err := f.Errs[symbol]; err != nil {
		return nil, nil, err
	}
	if m, ok := f.Margins[symbol]; ok {
		return m[0], m[1], nil
	}
	return nil, nil, nil
}

// syntheticSeries generates a deterministic wave so repeated runs of the
// mock provider produce identical indicators.
func syntheticSeries(symbol string, days int) model.PriceSeries {
	seed := 0
	for _, r := range symbol {
		seed += int(r)
	}
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(model.PriceSeries, days)
	for i := 0; i < days; i++ {
		phase := float64(seed+i) / 9.0
		series[i] = model.PricePoint{
			Time:  end.AddDate(0, 0, i-days),
			Close: 100 + 10*math.Sin(phase) + 0.05*float64(i),
		}
	}
	return series
}
