// Package collector fetches market data and derives indicator snapshots,
// margin comparisons, and rate histories, memoizing each kind behind its own
// result cache. Missing data degrades per field; only transport failures
// surface as errors.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/azusa152/Folio/internal/cache"
	"github.com/azusa152/Folio/internal/calculator"
	"github.com/azusa152/Folio/internal/metrics"
	"github.com/azusa152/Folio/internal/model"
	"github.com/azusa152/Folio/internal/strategy"
)

// IndicatorParams fixes the windows the collector computes snapshots with.
type IndicatorParams struct {
	RSIPeriod int
	LongMA    int
	ShortMA   int
	// RelaxedLongMA lets the long MA average over a shorter history.
	RelaxedLongMA bool
	// MinHistory is the floor below which no technical field is computed.
	MinHistory int
	// HistoryDays is how much daily history one snapshot is built from.
	HistoryDays int
}

// Collector owns the fetch-and-derive path for one provider.
type Collector struct {
	fetcher Fetcher
	params  IndicatorParams
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics

	snapshots *cache.Cache[model.IndicatorSnapshot]
	margins   *cache.Cache[model.MarginComparison]
	history   *cache.Cache[model.PriceSeries]
	redis     *cache.Redis // optional shared layer under the history cache
}

// Caches bundles the per-kind result caches injected into the collector.
type Caches struct {
	Snapshots *cache.Cache[model.IndicatorSnapshot]
	Margins   *cache.Cache[model.MarginComparison]
	History   *cache.Cache[model.PriceSeries]
	Redis     *cache.Redis
}

// New wires a collector. The redis layer may be nil.
func New(fetcher Fetcher, params IndicatorParams, timeout time.Duration, caches Caches, log zerolog.Logger, m *metrics.Metrics) *Collector {
	return &Collector{
		fetcher:   fetcher,
		params:    params,
		timeout:   timeout,
		log:       log.With().Str("component", "collector").Str("provider", fetcher.Name()).Logger(),
		metrics:   m,
		snapshots: caches.Snapshots,
		margins:   caches.Margins,
		history:   caches.History,
		redis:     caches.Redis,
	}
}

// Snapshot builds (or returns the cached) indicator snapshot for a ticker.
func (c *Collector) Snapshot(ctx context.Context, ticker string) (model.IndicatorSnapshot, error) {
	snap, hit, err := c.snapshots.GetOrCompute(ctx, ticker, func(ctx context.Context) (model.IndicatorSnapshot, error) {
		return c.buildSnapshot(ctx, ticker)
	})
	c.countCache(c.snapshots.Name(), hit)
	return snap, err
}

func (c *Collector) buildSnapshot(ctx context.Context, ticker string) (model.IndicatorSnapshot, error) {
	series, err := c.fetchHistory(ctx, ticker, c.params.HistoryDays)
	if err != nil {
		return model.IndicatorSnapshot{}, err
	}
	price, ok := series.Last()
	if !ok {
		return model.IndicatorSnapshot{}, fmt.Errorf("%w: empty history for %s", ErrNoData, ticker)
	}

	snap := model.IndicatorSnapshot{Ticker: ticker, Price: price, Points: len(series)}
	if len(series) < c.params.MinHistory {
		snap.Missing = []string{"rsi", "ma_long", "ma_short", "bias"}
		c.log.Warn().Str("ticker", ticker).Int("points", len(series)).
			Int("min", c.params.MinHistory).Msg("history too short for technicals")
		return snap, nil
	}

	closes := series.Closes()
	if rsi, ok := calculator.RSI(closes, c.params.RSIPeriod); ok {
		snap.RSI = model.Float(rsi)
	} else {
		snap.Missing = append(snap.Missing, "rsi")
	}
	if maLong, ok := calculator.SMA(closes, c.params.LongMA, c.params.RelaxedLongMA); ok {
		snap.MALong = model.Float(maLong)
		if bias, ok := calculator.Bias(price, maLong); ok {
			snap.Bias = model.Float(bias)
		} else {
			snap.Missing = append(snap.Missing, "bias")
		}
	} else {
		snap.Missing = append(snap.Missing, "ma_long", "bias")
	}
	if maShort, ok := calculator.SMA(closes, c.params.ShortMA, false); ok {
		snap.MAShort = model.Float(maShort)
	} else {
		snap.Missing = append(snap.Missing, "ma_short")
	}
	return snap, nil
}

// Margins builds (or returns the cached) margin comparison for a ticker.
// Missing fundamentals yield an UNAVAILABLE comparison, not an error.
func (c *Collector) Margins(ctx context.Context, ticker string) (model.MarginComparison, error) {
	m, hit, err := c.margins.GetOrCompute(ctx, ticker, func(ctx context.Context) (model.MarginComparison, error) {
		fctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		current, previous, err := c.fetcher.Fundamentals(fctx, ticker)
		if errors.Is(err, ErrNoData) {
			return strategy.CompareMargins(nil, nil), nil
		}
		if err != nil {
			return model.MarginComparison{}, fmt.Errorf("fundamentals %s: %w", ticker, err)
		}
		return strategy.CompareMargins(current, previous), nil
	})
	c.countCache(c.margins.Name(), hit)
	return m, err
}

// RateHistory returns the daily rate series for a currency pair.
func (c *Collector) RateHistory(ctx context.Context, base, quote string, days int) (model.PriceSeries, error) {
	return c.fetchHistory(ctx, FXSymbol(base, quote), days)
}

// fetchHistory runs the symbol's history through the in-process cache, then
// the optional redis layer, then the upstream fetcher.
func (c *Collector) fetchHistory(ctx context.Context, symbol string, days int) (model.PriceSeries, error) {
	key := fmt.Sprintf("history:%s:%d", symbol, days)
	series, hit, err := c.history.GetOrCompute(ctx, key, func(ctx context.Context) (model.PriceSeries, error) {
		if c.redis != nil {
			if b, err := c.redis.GetBytes(ctx, key); err == nil {
				var cached model.PriceSeries
				if err := json.Unmarshal(b, &cached); err == nil {
					return cached, nil
				}
				c.log.Warn().Str("key", key).Msg("dropping undecodable redis entry")
			} else if !errors.Is(err, cache.ErrMiss) {
				c.log.Warn().Err(err).Str("key", key).Msg("redis read failed")
			}
		}

		fctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		fetched, err := c.fetcher.PriceHistory(fctx, symbol, days)
		if err != nil {
			return nil, fmt.Errorf("price history %s: %w", symbol, err)
		}

		if c.redis != nil {
			if b, err := json.Marshal(fetched); err == nil {
				if err := c.redis.SetBytes(ctx, key, b); err != nil {
					c.log.Warn().Err(err).Str("key", key).Msg("redis write failed")
				}
			}
		}
		return fetched, nil
	})
	c.countCache(c.history.Name(), hit)
	return series, err
}

func (c *Collector) countCache(name string, hit bool) {
	if hit {
		c.metrics.CacheHit(name)
	} else {
		c.metrics.CacheMiss(name)
	}
}
