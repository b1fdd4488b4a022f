package collector

import (
	"context"
	"errors"

	"github.com/azusa152/Folio/internal/model"
)

// ErrNoData marks an upstream response that succeeded but carried no usable
// data for the symbol. Callers degrade the affected field instead of
// treating it as a transport failure.
var ErrNoData = errors.New("collector: no data")

// Fetcher is the market-data provider contract. Implementations must
// tolerate empty or short series and missing fundamental fields without
// erroring; only genuine transport or auth failures are errors.
type Fetcher interface {
	// PriceHistory returns up to `days` daily closes, ascending by time.
	PriceHistory(ctx context.Context, symbol string, days int) (model.PriceSeries, error)
	// Quote returns the latest close for the symbol.
	Quote(ctx context.Context, symbol string) (float64, error)
	// Fundamentals returns the current-quarter and year-ago gross margin
	// percentages. Either may be nil when the provider has no figure.
	Fundamentals(ctx context.Context, symbol string) (current, previous *float64, err error)
	Name() string
}

// FXSymbol maps a currency pair to its provider ticker, e.g. USD/JPY to
// "USDJPY=X".
func FXSymbol(base, quote string) string {
	return base + quote + "=X"
}
