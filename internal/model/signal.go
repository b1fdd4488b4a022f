package model

// Category selects which checks apply to a tracked instrument and which
// signal states are reachable for it.
type Category string

const (
	CategoryTrendSetter Category = "TREND_SETTER"
	CategoryMoat        Category = "MOAT"
	CategoryGrowth      Category = "GROWTH"
	CategoryBond        Category = "BOND"
	CategoryCash        Category = "CASH"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTrendSetter, CategoryMoat, CategoryGrowth, CategoryBond, CategoryCash:
		return true
	}
	return false
}

// HasTechnicalChecks reports whether the category is classified from price
// indicators. BOND and CASH carry no checks and always scan as NORMAL.
func (c Category) HasTechnicalChecks() bool {
	return c == CategoryTrendSetter || c == CategoryGrowth
}

// SignalState is the discrete scan outcome for one instrument. Only a subset
// of states is reachable per category.
type SignalState string

const (
	SignalNormal        SignalState = "NORMAL"
	SignalContrarianBuy SignalState = "CONTRARIAN_BUY"
	SignalOverheated    SignalState = "OVERHEATED"
	SignalThesisBroken  SignalState = "THESIS_BROKEN"
)

// MarketSentiment is the market-wide breadth gate injected into
// classification. It is computed once per scan cycle, never per instrument.
type MarketSentiment string

const (
	SentimentPositive MarketSentiment = "POSITIVE"
	SentimentCaution  MarketSentiment = "CAUTION"
)

// MoatStatus classifies the year-over-year margin trend.
type MoatStatus string

const (
	MoatDeteriorating MoatStatus = "DETERIORATING"
	MoatStable        MoatStatus = "STABLE"
	MoatUnavailable   MoatStatus = "UNAVAILABLE"
)

// MarginComparison is the result of comparing the current-period margin
// against the year-ago one. Change is meaningful only when Status is not
// UNAVAILABLE.
type MarginComparison struct {
	CurrentMargin  *float64   `json:"current_margin,omitempty"`
	PreviousMargin *float64   `json:"previous_margin,omitempty"`
	Change         float64    `json:"change"`
	Status         MoatStatus `json:"status"`
	Detail         string     `json:"detail"`
}

// ScanResult is the classification outcome for one instrument in one cycle.
type ScanResult struct {
	Ticker    string            `json:"ticker"`
	Category  Category          `json:"category"`
	Signal    SignalState       `json:"signal"`
	Sentiment MarketSentiment   `json:"sentiment"`
	Notes     []string          `json:"notes,omitempty"`
	Snapshot  IndicatorSnapshot `json:"snapshot"`
	Margin    *MarginComparison `json:"margin,omitempty"`
}
