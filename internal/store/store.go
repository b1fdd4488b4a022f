// Package store persists watch configurations, tracked instruments, and
// custom alert rules. The engine reads active entries each cycle and writes
// back only the cooldown timestamps and last-signal transitions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/azusa152/Folio/internal/model"
)

// ErrNotFound marks a lookup or update scoped to an id that does not exist.
var ErrNotFound = errors.New("store: not found")

// WatchStore holds the currency-pair watches and their cooldown state.
type WatchStore interface {
	ActiveWatches(ctx context.Context) ([]model.Watch, error)
	GetWatch(ctx context.Context, id int64) (model.Watch, error)
	UpsertWatch(ctx context.Context, w model.Watch) (int64, error)
	// MarkAlerted sets last_alerted_at for one watch id.
	MarkAlerted(ctx context.Context, id int64, at time.Time) error
}

// InstrumentStore holds the tracked watch-list instruments.
type InstrumentStore interface {
	ActiveInstruments(ctx context.Context) ([]model.Instrument, error)
	UpsertInstrument(ctx context.Context, inst model.Instrument) error
	// UpdateSignal records the latest scan outcome for transition detection.
	UpdateSignal(ctx context.Context, ticker string, signal model.SignalState) error
}

// RuleStore holds the user-defined threshold alert rules.
type RuleStore interface {
	ActiveRules(ctx context.Context) ([]model.AlertRule, error)
	GetRule(ctx context.Context, id int64) (model.AlertRule, error)
	UpsertRule(ctx context.Context, r model.AlertRule) (int64, error)
	// MarkTriggered sets last_triggered_at for one rule id.
	MarkTriggered(ctx context.Context, id int64, at time.Time) error
}

// Store is the full persistence surface the daemon wires up.
type Store interface {
	WatchStore
	InstrumentStore
	RuleStore
	Close() error
}
