package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/azusa152/Folio/internal/model"
)

// Seed is the shape of the JSON watchlist file upserted at startup.
type Seed struct {
	Instruments []model.Instrument `json:"instruments"`
	Watches     []model.Watch      `json:"watches"`
	Rules       []model.AlertRule  `json:"rules"`
}

var validate = validator.New()

// LoadSeed parses and validates a seed file. Any invalid entry rejects the
// whole file; a partially applied seed is harder to reason about than a
// failed start.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, inst := range seed.Instruments {
		if err := validate.Struct(inst); err != nil {
			return nil, fmt.Errorf("seed instrument %d (%s): %w", i, inst.Ticker, err)
		}
	}
	for i, w := range seed.Watches {
		if err := validate.Struct(w); err != nil {
			return nil, fmt.Errorf("seed watch %d (%s): %w", i, w.Pair(), err)
		}
	}
	for i, r := range seed.Rules {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("seed rule %d (%s): %w", i, r.Ticker, err)
		}
	}
	return &seed, nil
}

// Apply upserts every seed entry into the store.
func (s *Seed) Apply(ctx context.Context, st Store) error {
	for _, inst := range s.Instruments {
		if err := st.UpsertInstrument(ctx, inst); err != nil {
			return err
		}
	}
	for _, w := range s.Watches {
		if _, err := st.UpsertWatch(ctx, w); err != nil {
			return err
		}
	}
	for _, r := range s.Rules {
		if _, err := st.UpsertRule(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
