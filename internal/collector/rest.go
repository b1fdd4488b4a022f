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

	"github.com/azusa152/Folio/internal/model"
)

// RESTFetcher implements Fetcher against a self-hosted market-data relay,
// for deployments that cannot reach public providers directly. The relay
// authenticates with a bearer key.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a relay fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

func (f *RESTFetcher) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("relay fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("relay read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: status 404", ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("relay decode: %w", err)
	}
	return nil
}

// restBar is the relay's candle shape; only the close is consumed.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Close     float64 `json:"close"`
}

func (f *RESTFetcher) PriceHistory(ctx context.Context, symbol string, days int) (model.PriceSeries, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d",
		f.BaseURL, url.QueryEscape(symbol), days)

	var bars []restBar
	if err := f.getJSON(ctx, endpoint, &bars); err != nil {
		return nil, err
	}
	series := make(model.PriceSeries, 0, len(bars))
	for _, b := range bars {
		if b.Close == 0 {
			continue
		}
		series = append(series, model.PricePoint{Time: time.Unix(b.Timestamp, 0).UTC(), Close: b.Close})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	if len(series) > days {
		series = series[len(series)-days:]
	}
	return series, nil
}

func (f *RESTFetcher) Quote(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", f.BaseURL, url.QueryEscape(symbol))

	var quote struct {
		Price float64 `json:"price"`
	}
	if err := f.getJSON(ctx, endpoint, &quote); err != nil {
		return 0, err
	}
	if quote.Price == 0 {
		return 0, fmt.Errorf("%w: no price for %s", ErrNoData, symbol)
	}
	return quote.Price, nil
}

func (f *RESTFetcher) Fundamentals(ctx context.Context, symbol string) (*float64, *float64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/fundamentals?symbol=%s", f.BaseURL, url.QueryEscape(symbol))

	var margins struct {
		CurrentMargin  *float64 `json:"current_margin"`
		PreviousMargin *float64 `json:"previous_margin"`
	}
	if err := f.getJSON(ctx, endpoint, &margins); err != nil {
		return nil, nil, err
	}
	return margins.CurrentMargin, margins.PreviousMargin, nil
}
