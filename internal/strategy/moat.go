package strategy

import (
	"fmt"

	"github.com/azusa152/Folio/internal/calculator"
	"github.com/azusa152/Folio/internal/model"
)

// CompareMargins classifies the year-over-year gross margin trend. Either
// period missing yields UNAVAILABLE with no change value. Otherwise the
// change is current minus previous rounded to 2 decimals, and the status is
// DETERIORATING strictly when the change is negative.
func CompareMargins(current, previous *float64) model.MarginComparison {
	if current == nil || previous == nil {
		return model.MarginComparison{
			Status: model.MoatUnavailable,
			Detail: "margin data unavailable for one or both periods",
		}
	}
	change := calculator.Round2(*current - *previous)
	m := model.MarginComparison{
		CurrentMargin:  current,
		PreviousMargin: previous,
		Change:         change,
	}
	if change < 0 {
		m.Status = model.MoatDeteriorating
		m.Detail = fmt.Sprintf("gross margin deteriorated: %.2f%% -> %.2f%% (%+.2f pp YoY)", *previous, *current, change)
	} else {
		m.Status = model.MoatStable
		m.Detail = fmt.Sprintf("gross margin held: %.2f%% -> %.2f%% (%+.2f pp YoY)", *previous, *current, change)
	}
	return m
}
