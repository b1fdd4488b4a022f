package strategy

import "github.com/azusa152/Folio/internal/model"

// AssessBreadth derives the market-wide sentiment gate from the fraction of
// the scanned universe trading below its short moving average. Snapshots
// without a short MA are excluded from both sides of the ratio. A ratio
// strictly above cautionRatio flips the gate to CAUTION; an empty universe
// stays POSITIVE with ratio 0.
func AssessBreadth(snapshots []model.IndicatorSnapshot, cautionRatio float64) (model.MarketSentiment, float64) {
	total, below := 0, 0
	for _, s := range snapshots {
		if s.MAShort == nil {
			continue
		}
		total++
		if s.Price < *s.MAShort {
			below++
		}
	}
	if total == 0 {
		return model.SentimentPositive, 0
	}
	ratio := float64(below) / float64(total)
	if ratio > cautionRatio {
		return model.SentimentCaution, ratio
	}
	return model.SentimentPositive, ratio
}
