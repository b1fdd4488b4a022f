package strategy

import (
	"strings"
	"testing"

	"github.com/azusa152/Folio/internal/model"
)

func TestCompareMargins_Unavailable(t *testing.T) {
	tests := []struct {
		name          string
		cur, prev     *float64
	}{
		{"missing current", nil, model.Float(40)},
		{"missing previous", model.Float(40), nil},
		{"missing both", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := CompareMargins(tt.cur, tt.prev)
			if m.Status != model.MoatUnavailable {
				t.Errorf("expected UNAVAILABLE, got %s", m.Status)
			}
			if m.Change != 0 {
				t.Errorf("expected no change value, got %v", m.Change)
			}
		})
	}
}

func TestCompareMargins_Deteriorating(t *testing.T) {
	m := CompareMargins(model.Float(40.5), model.Float(42.25))
	if m.Status != model.MoatDeteriorating {
		t.Fatalf("expected DETERIORATING, got %s", m.Status)
	}
	if m.Change != -1.75 {
		t.Errorf("expected change -1.75, got %v", m.Change)
	}
	for _, want := range []string{"42.25", "40.50", "-1.75"} {
		if !strings.Contains(m.Detail, want) {
			t.Errorf("expected detail to contain %q, got %q", want, m.Detail)
		}
	}
}

func TestCompareMargins_Stable(t *testing.T) {
	m := CompareMargins(model.Float(42.25), model.Float(40.5))
	if m.Status != model.MoatStable {
		t.Fatalf("expected STABLE, got %s", m.Status)
	}
	if m.Change != 1.75 {
		t.Errorf("expected change 1.75, got %v", m.Change)
	}
	for _, want := range []string{"40.50", "42.25", "+1.75"} {
		if !strings.Contains(m.Detail, want) {
			t.Errorf("expected detail to contain %q, got %q", want, m.Detail)
		}
	}
}

func TestCompareMargins_ZeroChangeIsStable(t *testing.T) {
	m := CompareMargins(model.Float(40.0), model.Float(40.0))
	if m.Status != model.MoatStable {
		t.Errorf("expected STABLE for zero change, got %s", m.Status)
	}
}

func TestCompareMargins_RoundsToTwoDecimals(t *testing.T) {
	m := CompareMargins(model.Float(40.123), model.Float(40.0))
	if m.Change != 0.12 {
		t.Errorf("expected change 0.12, got %v", m.Change)
	}
}
