package model

// IndicatorSnapshot holds the derived technical indicators for one
// instrument at scan time. Nil pointers mean the history was too short to
// compute that field; consumers must treat nil as "unavailable", never as a
// passing value.
type IndicatorSnapshot struct {
	Ticker  string   `json:"ticker"`
	Price   float64  `json:"price"`
	RSI     *float64 `json:"rsi,omitempty"`
	MALong  *float64 `json:"ma_long,omitempty"`
	MAShort *float64 `json:"ma_short,omitempty"`
	Bias    *float64 `json:"bias,omitempty"`
	// Points is the number of history points the snapshot was built from.
	Points int `json:"points"`
	// Missing names the indicator fields that could not be computed.
	Missing []string `json:"missing,omitempty"`
}

// HasTechnicals reports whether at least one technical field was computed.
func (s IndicatorSnapshot) HasTechnicals() bool {
	return s.RSI != nil || s.MALong != nil || s.MAShort != nil || s.Bias != nil
}

// Float wraps a value for the snapshot's optional fields.
func Float(v float64) *float64 { return &v }
