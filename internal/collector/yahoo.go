package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/azusa152/Folio/internal/calculator"
	"github.com/azusa152/Folio/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher against the Yahoo Finance public API:
// the v8 chart endpoint for price history and the v10 quoteSummary endpoint
// for quarterly income statements.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a Yahoo fetcher with optional proxy support.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure of the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func chartRange(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	}
	return "2y" // max range for daily interval
}

func (f *YahooFetcher) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: status 404", ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

func (f *YahooFetcher) PriceHistory(ctx context.Context, symbol string, days int) (model.PriceSeries, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), chartRange(days))

	var chart yahooChart
	if err := f.getJSON(ctx, u, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%w: empty chart for %s", ErrNoData, symbol)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no quote block for %s", ErrNoData, symbol)
	}
	closes := result.Indicators.Quote[0].Close

	series := make(model.PriceSeries, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // null bars on holidays
		}
		series = append(series, model.PricePoint{Time: time.Unix(ts, 0).UTC(), Close: *closes[i]})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })

	if len(series) > days {
		series = series[len(series)-days:]
	}
	return series, nil
}

func (f *YahooFetcher) Quote(ctx context.Context, symbol string) (float64, error) {
	series, err := f.PriceHistory(ctx, symbol, 5)
	if err != nil {
		return 0, err
	}
	price, ok := series.Last()
	if !ok {
		return 0, fmt.Errorf("%w: no recent close for %s", ErrNoData, symbol)
	}
	return price, nil
}

// yahooSummary is the quoteSummary response, trimmed to the quarterly income
// statement history.
type yahooSummary struct {
	QuoteSummary struct {
		Result []struct {
			IncomeStatementHistoryQuarterly struct {
				IncomeStatementHistory []struct {
					GrossProfit  *struct{ Raw float64 } `json:"grossProfit"`
					TotalRevenue *struct{ Raw float64 } `json:"totalRevenue"`
				} `json:"incomeStatementHistory"`
			} `json:"incomeStatementHistoryQuarterly"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Fundamentals derives the current and year-ago quarterly gross margins.
// Yahoo orders quarters newest first, so the year-ago figure is the fifth
// entry; fewer than five quarters means no comparison is possible.
func (f *YahooFetcher) Fundamentals(ctx context.Context, symbol string) (*float64, *float64, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=incomeStatementHistoryQuarterly",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)))

	var summary yahooSummary
	if err := f.getJSON(ctx, u, &summary); err != nil {
		return nil, nil, err
	}
	if summary.QuoteSummary.Error != nil {
		return nil, nil, fmt.Errorf("yahoo api error: %s", summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, nil, nil
	}
	quarters := summary.QuoteSummary.Result[0].IncomeStatementHistoryQuarterly.IncomeStatementHistory
	if len(quarters) < 5 {
		return nil, nil, nil
	}
	return grossMargin(quarters[0].GrossProfit, quarters[0].TotalRevenue),
		grossMargin(quarters[4].GrossProfit, quarters[4].TotalRevenue), nil
}

func grossMargin(profit, revenue *struct{ Raw float64 }) *float64 {
	if profit == nil || revenue == nil || revenue.Raw == 0 {
		return nil
	}
	m := calculator.Round2(profit.Raw / revenue.Raw * 100)
	return &m
}
