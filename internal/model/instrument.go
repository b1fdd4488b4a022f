package model

// Instrument is one tracked watch-list entry. The thesis and tags are
// free-form user context carried into notifications and audit rows;
// LastSignal is the previous cycle's outcome, used to notify only on
// transitions.
type Instrument struct {
	Ticker       string      `json:"ticker" yaml:"ticker" validate:"required"`
	Category     Category    `json:"category" yaml:"category" validate:"oneof=TREND_SETTER MOAT GROWTH BOND CASH"`
	Thesis       string      `json:"thesis" yaml:"thesis"`
	Tags         []string    `json:"tags,omitempty" yaml:"tags"`
	DisplayOrder int         `json:"display_order" yaml:"display_order"`
	IsActive     bool        `json:"is_active" yaml:"is_active"`
	LastSignal   SignalState `json:"last_signal" yaml:"-"`
}
